package form

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type uploaderStub struct {
	mu         sync.Mutex
	fileCalls  int
	urlCalls   int
	hostedURL  string
	urlErr     error
	block      chan struct{}
	remoteURLs []string

	urlStarted chan struct{}
	urlBlock   chan struct{}
}

func (u *uploaderStub) UploadContactImage(ctx context.Context, file shared.File, ownerID string) (string, error) {
	u.mu.Lock()
	u.fileCalls++
	block := u.block
	u.mu.Unlock()

	if block != nil {
		<-block
	}
	return u.hostedURL, nil
}

func (u *uploaderStub) UploadImageFromURL(ctx context.Context, remoteURL, ownerID string) (string, error) {
	u.mu.Lock()
	u.urlCalls++
	u.remoteURLs = append(u.remoteURLs, remoteURL)
	started, block := u.urlStarted, u.urlBlock
	u.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}

	if u.urlErr != nil {
		return "", u.urlErr
	}
	return u.hostedURL, nil
}

type profilesStub struct {
	profile schema.Profile
	err     error
}

func (p *profilesStub) FetchLinkedInProfile(ctx context.Context, profileURL string) (schema.Profile, error) {
	return p.profile, p.err
}

func imageFile(contentType string, size int64) shared.File {
	return shared.File{Name: "photo", ContentType: contentType, Size: size, Content: strings.NewReader("")}
}

func TestSelectImageFileRejectsLargeFiles(t *testing.T) {
	uploader := &uploaderStub{hostedURL: "https://cdn.test/u1/a.png"}
	controller := New("u1", uploader, &profilesStub{})

	_, err := controller.SelectImageFile(context.Background(), imageFile("image/png", 6*1024*1024))

	assert.True(t, shared.IsKind(err, shared.ValidationError))
	assert.Equal(t, "Image size should be less than 5MB", shared.Message(err))
	assert.Equal(t, err, controller.Err(), "The error should be shown on the form")
	assert.Equal(t, 0, uploader.fileCalls, "No upload should be attempted")
	assert.Empty(t, controller.Fields().ImageURL)
}

func TestSelectImageFileRejectsNonImages(t *testing.T) {
	uploader := &uploaderStub{}
	controller := New("u1", uploader, &profilesStub{})

	_, err := controller.SelectImageFile(context.Background(), imageFile("application/pdf", 1024))

	assert.Equal(t, "Please select an image file", shared.Message(err))
	assert.Equal(t, 0, uploader.fileCalls)
}

func TestSelectImageFile(t *testing.T) {
	uploader := &uploaderStub{hostedURL: "https://cdn.test/u1/a.png"}
	controller := New("u1", uploader, &profilesStub{})

	imageURL, err := controller.SelectImageFile(context.Background(), imageFile("image/png", shared.MaxImageSize))

	assert.Nil(t, err)
	assert.Equal(t, "https://cdn.test/u1/a.png", imageURL)
	assert.Equal(t, imageURL, controller.Fields().ImageURL)
	assert.False(t, controller.Loading())
}

func TestSelectImageFileWhileBusy(t *testing.T) {
	uploader := &uploaderStub{hostedURL: "https://cdn.test/u1/a.png", block: make(chan struct{})}
	controller := New("u1", uploader, &profilesStub{})

	done := make(chan error)
	go func() {
		_, err := controller.SelectImageFile(context.Background(), imageFile("image/png", 10))
		done <- err
	}()

	// wait for the first upload to claim the slot
	for !controller.Loading() {
	}

	_, err := controller.SelectImageFile(context.Background(), imageFile("image/png", 10))
	assert.Equal(t, ErrBusy, err)

	close(uploader.block)
	assert.Nil(t, <-done)
	assert.Equal(t, 1, uploader.fileCalls)
}

func TestSelectImageFileWithoutOwner(t *testing.T) {
	uploader := &uploaderStub{hostedURL: "https://cdn.test/u1/a.png"}
	controller := New("", uploader, &profilesStub{})

	_, err := controller.SelectImageFile(context.Background(), imageFile("image/png", 10))

	assert.True(t, shared.IsKind(err, shared.AuthError))
	assert.Equal(t, err, controller.Err())
	assert.Equal(t, 0, uploader.fileCalls)
}

func TestImportFromProfileURL(t *testing.T) {
	uploader := &uploaderStub{hostedURL: "https://cdn.test/u1/b.jpg"}
	profiles := &profilesStub{profile: schema.Profile{
		Name:     schema.String("Ada Lovelace"),
		JobTitle: schema.String("Analyst"),
		ImageURL: schema.String("https://media.licdn.test/ada.jpg"),
	}}
	controller := New("u1", uploader, profiles)
	controller.SetField(FieldAbout, "kept")

	applied, err := controller.ImportFromProfileURL(context.Background(), "https://www.linkedin.com/in/ada")

	assert.Nil(t, err)
	assert.Equal(t, "https://cdn.test/u1/b.jpg", *applied.ImageURL)
	assert.Equal(t, []string{"https://media.licdn.test/ada.jpg"}, uploader.remoteURLs)

	fields := controller.Fields()
	assert.Equal(t, "Ada Lovelace", fields.Name)
	assert.Equal(t, "Analyst", fields.JobTitle)
	assert.Equal(t, "kept", fields.About, "Fields missing from the profile should not change")
	assert.Equal(t, "https://cdn.test/u1/b.jpg", fields.ImageURL)
}

func TestImportFromProfileURLAppliesImageAfterRehost(t *testing.T) {
	uploader := &uploaderStub{
		hostedURL:  "https://cdn.test/u1/jane.png",
		urlStarted: make(chan struct{}),
		urlBlock:   make(chan struct{}),
	}
	profiles := &profilesStub{profile: schema.Profile{
		Name:     schema.String("Jane"),
		ImageURL: schema.String("https://media.licdn.test/jane.jpg"),
	}}
	controller := New("u1", uploader, profiles)

	done := make(chan error)
	go func() {
		_, err := controller.ImportFromProfileURL(context.Background(), "https://www.linkedin.com/in/jane")
		done <- err
	}()

	<-uploader.urlStarted
	assert.Equal(t, "Jane", controller.Fields().Name, "The name should be applied before the image is hosted")
	assert.Empty(t, controller.Fields().ImageURL)

	close(uploader.urlBlock)
	assert.Nil(t, <-done)
	assert.Equal(t, "https://cdn.test/u1/jane.png", controller.Fields().ImageURL)
}

func TestImportFromProfileURLWhenImageUploadFails(t *testing.T) {
	uploadErr := shared.E(shared.UploadError, "images.UploadImageFromURL", errors.New("remote image unavailable"))
	uploader := &uploaderStub{urlErr: uploadErr}
	profiles := &profilesStub{profile: schema.Profile{
		Name:     schema.String("Ada Lovelace"),
		ImageURL: schema.String("https://media.licdn.test/ada.jpg"),
	}}
	controller := New("u1", uploader, profiles)

	applied, err := controller.ImportFromProfileURL(context.Background(), "https://www.linkedin.com/in/ada")

	assert.Equal(t, uploadErr, err)
	assert.Equal(t, uploadErr, controller.Err())
	assert.Equal(t, "Ada Lovelace", *applied.Name)
	assert.Equal(t, "Ada Lovelace", controller.Fields().Name, "Text fields should stay applied")
	assert.Empty(t, controller.Fields().ImageURL)
}

func TestImportFromProfileURLWhenFetchFails(t *testing.T) {
	fetchErr := shared.Validationf("profile.FetchLinkedInProfile", "Please enter a valid LinkedIn profile URL")
	controller := New("u1", &uploaderStub{}, &profilesStub{err: fetchErr})
	controller.SetField(FieldName, "typed")

	_, err := controller.ImportFromProfileURL(context.Background(), "https://example.com")

	assert.Equal(t, fetchErr, err)
	assert.Equal(t, "typed", controller.Fields().Name)
}

func TestImportFromProfileURLIsNoopWithoutURL(t *testing.T) {
	uploader := &uploaderStub{}
	controller := New("u1", uploader, &profilesStub{err: errors.New("should not be called")})

	_, err := controller.ImportFromProfileURL(context.Background(), "  ")
	assert.Nil(t, err)
	assert.Nil(t, controller.Err())
}

func TestSetField(t *testing.T) {
	controller := New("u1", &uploaderStub{}, &profilesStub{})
	controller.SelectImageFile(context.Background(), imageFile("text/plain", 10))
	assert.NotNil(t, controller.Err())

	assert.Nil(t, controller.SetField(FieldName, "Ada"))
	assert.Nil(t, controller.Err(), "Editing a field should clear the error")

	err := controller.SetField("nickname", "A")
	assert.True(t, shared.IsKind(err, shared.ValidationError))
}

func TestBuildSubmission(t *testing.T) {
	controller := New("u1", &uploaderStub{}, &profilesStub{})
	controller.SetField(FieldName, "  Ada Lovelace ")
	controller.SetField(FieldWebsite, "https://ada.dev")
	controller.SetField(FieldAbout, "   ")
	controller.SetField(FieldTags, "math, ,poetry,,")

	submission := controller.BuildSubmission()

	assert.Equal(t, "Ada Lovelace", *submission.Name)
	assert.Equal(t, "https://ada.dev", *submission.Website)
	assert.Nil(t, submission.About, "Blank fields should be left out")
	assert.Nil(t, submission.JobTitle)
	assert.Equal(t, []string{"math", "poetry"}, submission.Tags)
	assert.Empty(t, submission.ContactMethods)
	assert.Empty(t, submission.SocialLinks)
	assert.Empty(t, submission.Conversations)
}

func TestParseTags(t *testing.T) {
	cases := []struct {
		input    string
		expected []string
	}{
		{"a, ,b,,c ", []string{"a", "b", "c"}},
		{"", []string{}},
		{"work, work", []string{"work", "work"}},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, ParseTags(c.input), "ParseTags(%q)", c.input)
	}
}
