// Package schema maps between the client representation of contacts
// (camelCase JSON) and the rows stored by the backend (snake_case columns).
//
// Every function in this package is pure.
package schema

import "time"

const (
	TableUsers          = "users"
	TableContacts       = "contacts"
	TableContactMethods = "contact_methods"
	TableSocialLinks    = "social_links"
	TableConversations  = "conversations"
)

// Column names shared by the rows of the backend tables.
const (
	ColID           = "id"
	ColUserID       = "user_id"
	ColContactID    = "contact_id"
	ColCreatedAt    = "created_at"
	ColUpdatedAt    = "updated_at"
	ColEmail        = "email"
	ColName         = "name"
	ColJobTitle     = "job_title"
	ColImageURL     = "image_url"
	ColAbout        = "about"
	ColWebsite      = "website"
	ColCalendarLink = "calendar_link"
	ColCategory     = "category"
	ColTags         = "tags"
	ColType         = "type"
	ColValue        = "value"
	ColIsPrimary    = "is_primary"
	ColPlatform     = "platform"
	ColURL          = "url"
	ColDate         = "date"
	ColSummary      = "summary"
	ColTranscript   = "transcript"
)

type (
	UserRow          map[string]interface{}
	ContactRow       map[string]interface{}
	ContactMethodRow map[string]interface{}
	SocialLinkRow    map[string]interface{}
	ConversationRow  map[string]interface{}
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Contact struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	JobTitle       *string         `json:"jobTitle,omitempty"`
	ImageURL       *string         `json:"imageUrl,omitempty"`
	About          *string         `json:"about,omitempty"`
	Website        *string         `json:"website,omitempty"`
	CalendarLink   *string         `json:"calendarLink,omitempty"`
	Category       *string         `json:"category,omitempty"`
	Tags           []string        `json:"tags"`
	UserID         string          `json:"userId"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	ContactMethods []ContactMethod `json:"contactMethods"`
	SocialLinks    []SocialLink    `json:"socialLinks"`
	Conversations  []Conversation  `json:"conversations"`
}

// PartialContact carries only the fields a caller wants written. A nil
// pointer (or a nil Tags slice) means "absent"; an empty value is present.
type PartialContact struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,notblank,max=200"`
	JobTitle     *string  `json:"jobTitle,omitempty" validate:"omitempty,max=200"`
	ImageURL     *string  `json:"imageUrl,omitempty" validate:"omitempty,optional_url"`
	About        *string  `json:"about,omitempty" validate:"omitempty,max=5000"`
	Website      *string  `json:"website,omitempty" validate:"omitempty,optional_url"`
	CalendarLink *string  `json:"calendarLink,omitempty" validate:"omitempty,optional_url"`
	Category     *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Tags         []string `json:"tags" validate:"omitempty,dive,notblank,max=50"`

	// Children are never written through the contacts table.
	ContactMethods []ContactMethod `json:"contactMethods,omitempty" validate:"-"`
	SocialLinks    []SocialLink    `json:"socialLinks,omitempty" validate:"-"`
	Conversations  []Conversation  `json:"conversations,omitempty" validate:"-"`
}

type ContactMethod struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	IsPrimary bool   `json:"isPrimary"`
	ContactID string `json:"contactId"`
}

type SocialLink struct {
	ID        string `json:"id"`
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	ContactID string `json:"contactId"`
}

type Conversation struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Summary    string    `json:"summary"`
	Transcript *string   `json:"transcript,omitempty"`
	ContactID  string    `json:"contactId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile is what a profile import returns. Any field may be missing.
type Profile struct {
	Name     *string `json:"name,omitempty"`
	JobTitle *string `json:"jobTitle,omitempty"`
	About    *string `json:"about,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

func String(s string) *string {
	return &s
}

func Bool(b bool) *bool {
	return &b
}
