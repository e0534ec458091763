package shared

import (
	"io"
	"strings"
)

// MaxImageSize is the largest image accepted for a contact, 5 MiB.
const MaxImageSize = 5 << 20

// File is a local file picked for upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ValidateImage rejects anything that is not an image or is larger than MaxImageSize.
func ValidateImage(op, contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return Validationf(op, "Please select an image file")
	}
	if size > MaxImageSize {
		return Validationf(op, "Image size should be less than 5MB")
	}
	return nil
}
