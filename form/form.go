// Package form holds the state of the add-contact form while it is being
// filled in: the typed fields, the image upload and the LinkedIn import.
package form

import (
	"context"
	"strings"
	"sync"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when an upload or import is started while another one
// is still running.
var ErrBusy = errors.New("another action is in progress")

const (
	FieldName         = "name"
	FieldJobTitle     = "jobTitle"
	FieldImageURL     = "imageUrl"
	FieldAbout        = "about"
	FieldWebsite      = "website"
	FieldCalendarLink = "calendarLink"
	FieldCategory     = "category"
	FieldLinkedInURL  = "linkedinUrl"
	FieldTags         = "tags"
)

type ImageUploader interface {
	UploadContactImage(ctx context.Context, file shared.File, ownerID string) (string, error)
	UploadImageFromURL(ctx context.Context, remoteURL, ownerID string) (string, error)
}

type ProfileFetcher interface {
	FetchLinkedInProfile(ctx context.Context, profileURL string) (schema.Profile, error)
}

// Fields is the raw text of every input of the form.
type Fields struct {
	Name         string
	JobTitle     string
	ImageURL     string
	About        string
	Website      string
	CalendarLink string
	Category     string
	LinkedInURL  string
	Tags         string
}

type Controller struct {
	ownerID  string
	uploader ImageUploader
	profiles ProfileFetcher
	inFlight *semaphore.Weighted

	mu      sync.Mutex
	fields  Fields
	err     error
	loading bool
}

func New(ownerID string, uploader ImageUploader, profiles ProfileFetcher) *Controller {
	return &Controller{
		ownerID:  ownerID,
		uploader: uploader,
		profiles: profiles,
		inFlight: semaphore.NewWeighted(1),
	}
}

func (c *Controller) Fields() Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

// Err is the one error currently shown on the form. The most recent failure wins.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SetField edits one input. Like typing into the form, it clears the error.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	field := c.field(name)
	if field == nil {
		return shared.Validationf("form.SetField", "unknown field %q", name)
	}

	*field = value
	c.err = nil
	return nil
}

// SelectImageFile uploads a local image and sets the image URL to the hosted
// copy. Files that are not images or are larger than 5 MiB are rejected
// without any network call.
func (c *Controller) SelectImageFile(ctx context.Context, file shared.File) (string, error) {
	const op = "form.SelectImageFile"

	if err := shared.ValidateImage(op, file.ContentType, file.Size); err != nil {
		c.fail(err)
		return "", err
	}
	if c.ownerID == "" {
		err := shared.E(shared.AuthError, op, errors.New("not signed in"))
		c.fail(err)
		return "", err
	}

	release, err := c.begin()
	if err != nil {
		return "", err
	}
	defer release()

	imageURL, err := c.uploader.UploadContactImage(ctx, file, c.ownerID)
	if err != nil {
		c.fail(err)
		return "", err
	}

	c.apply(func(fields *Fields) {
		if imageURL != "" {
			fields.ImageURL = imageURL
		}
	})
	return imageURL, nil
}

// ImportFromProfileURL fills the form from a LinkedIn profile. Text fields are
// applied as soon as the profile arrives; the profile image is then re-hosted
// and applied on its own. When the re-host fails the text fields stay applied
// and the error is shown. An empty profileURL uses the form's LinkedIn field.
func (c *Controller) ImportFromProfileURL(ctx context.Context, profileURL string) (schema.Profile, error) {
	const op = "form.ImportFromProfileURL"

	if profileURL == "" {
		profileURL = c.Fields().LinkedInURL
	}
	if strings.TrimSpace(profileURL) == "" || c.ownerID == "" {
		return schema.Profile{}, nil
	}

	release, err := c.begin()
	if err != nil {
		return schema.Profile{}, err
	}
	defer release()

	profile, err := c.profiles.FetchLinkedInProfile(ctx, profileURL)
	if err != nil {
		c.fail(err)
		return schema.Profile{}, err
	}

	applied := schema.Profile{
		Name:     nonEmpty(profile.Name),
		JobTitle: nonEmpty(profile.JobTitle),
		About:    nonEmpty(profile.About),
	}
	c.apply(func(fields *Fields) {
		setIfPresent(&fields.Name, applied.Name)
		setIfPresent(&fields.JobTitle, applied.JobTitle)
		setIfPresent(&fields.About, applied.About)
	})

	if remote := nonEmpty(profile.ImageURL); remote != nil {
		imageURL, err := c.uploader.UploadImageFromURL(ctx, *remote, c.ownerID)
		if err != nil {
			c.fail(err)
			return applied, err
		}

		if imageURL != "" {
			applied.ImageURL = schema.String(imageURL)
			c.apply(func(fields *Fields) {
				fields.ImageURL = imageURL
			})
		}
	}

	return applied, nil
}

// BuildSubmission turns the form into the contact to create. Name is always
// present; other fields are left out when empty.
func (c *Controller) BuildSubmission() schema.PartialContact {
	fields := c.Fields()

	return schema.PartialContact{
		Name:           schema.String(strings.TrimSpace(fields.Name)),
		JobTitle:       optional(fields.JobTitle),
		ImageURL:       optional(fields.ImageURL),
		About:          optional(fields.About),
		Website:        optional(fields.Website),
		CalendarLink:   optional(fields.CalendarLink),
		Category:       optional(fields.Category),
		Tags:           ParseTags(fields.Tags),
		ContactMethods: []schema.ContactMethod{},
		SocialLinks:    []schema.SocialLink{},
		Conversations:  []schema.Conversation{},
	}
}

// ParseTags splits comma separated tags, trims them and drops empty ones.
// Order and duplicates are kept.
func ParseTags(input string) []string {
	tags := []string{}
	for _, tag := range strings.Split(input, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// begin claims the single in-flight slot and clears the error.
func (c *Controller) begin() (func(), error) {
	if !c.inFlight.TryAcquire(1) {
		return nil, ErrBusy
	}

	c.mu.Lock()
	c.loading = true
	c.err = nil
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		c.inFlight.Release(1)
	}, nil
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Controller) apply(update func(fields *Fields)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.fields)
}

func (c *Controller) field(name string) *string {
	switch name {
	case FieldName:
		return &c.fields.Name
	case FieldJobTitle:
		return &c.fields.JobTitle
	case FieldImageURL:
		return &c.fields.ImageURL
	case FieldAbout:
		return &c.fields.About
	case FieldWebsite:
		return &c.fields.Website
	case FieldCalendarLink:
		return &c.fields.CalendarLink
	case FieldCategory:
		return &c.fields.Category
	case FieldLinkedInURL:
		return &c.fields.LinkedInURL
	case FieldTags:
		return &c.fields.Tags
	default:
		return nil
	}
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return schema.String(strings.TrimSpace(value))
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(*value)
}

func setIfPresent(field *string, value *string) {
	if value != nil {
		*field = *value
	}
}
