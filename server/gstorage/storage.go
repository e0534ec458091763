package gstorage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GStorage struct {
	storageClient *storage.Client
	bucket        string
	publicBaseURL string
}

// NewGStorage connects to Google Cloud Storage. Objects are served from
// publicBaseURL when set, otherwise from storage.googleapis.com.
func NewGStorage(credentialsFilePath, bucket, publicBaseURL string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, fmt.Errorf("NewGStorage: %v", err)
	}

	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}

	return &GStorage{storageClient: client, bucket: bucket, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Put uploads an object and returns its public URL.
func (gs *GStorage) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*50)
	defer cancel()

	wc := gs.storageClient.Bucket(gs.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=31536000"

	if _, err := io.Copy(wc, body); err != nil {
		wc.Close()
		return "", fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %v", err)
	}

	return gs.publicBaseURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}

func (gs *GStorage) Close() error {
	return gs.storageClient.Close()
}
