package schema

import "time"

// Patch is one of the partial-update shapes a table accepts:
// PartialContact, ContactMethodPatch, SocialLinkPatch or ConversationPatch.
type Patch interface {
	Table() string
	Row() map[string]interface{}
}

var (
	_ Patch = PartialContact{}
	_ Patch = ContactMethodPatch{}
	_ Patch = SocialLinkPatch{}
	_ Patch = ConversationPatch{}
)

func (contact PartialContact) Table() string { return TableContacts }

func (contact PartialContact) Row() map[string]interface{} { return ToRow(contact) }

type ContactMethodPatch struct {
	Type      *string `json:"type,omitempty" validate:"omitempty,notblank,max=50"`
	Value     *string `json:"value,omitempty" validate:"omitempty,notblank,max=500"`
	IsPrimary *bool   `json:"isPrimary,omitempty"`
}

func (patch ContactMethodPatch) Table() string { return TableContactMethods }

func (patch ContactMethodPatch) Row() map[string]interface{} {
	row := map[string]interface{}{}
	putString(row, ColType, patch.Type)
	putString(row, ColValue, patch.Value)
	if patch.IsPrimary != nil {
		row[ColIsPrimary] = *patch.IsPrimary
	}
	return row
}

type SocialLinkPatch struct {
	Platform *string `json:"platform,omitempty" validate:"omitempty,notblank,max=50"`
	URL      *string `json:"url,omitempty" validate:"omitempty,notblank,optional_url"`
}

func (patch SocialLinkPatch) Table() string { return TableSocialLinks }

func (patch SocialLinkPatch) Row() map[string]interface{} {
	row := map[string]interface{}{}
	putString(row, ColPlatform, patch.Platform)
	putString(row, ColURL, patch.URL)
	return row
}

type ConversationPatch struct {
	Date       *time.Time `json:"date,omitempty"`
	Summary    *string    `json:"summary,omitempty" validate:"omitempty,notblank"`
	Transcript *string    `json:"transcript,omitempty"`
}

func (patch ConversationPatch) Table() string { return TableConversations }

func (patch ConversationPatch) Row() map[string]interface{} {
	row := map[string]interface{}{}
	if patch.Date != nil {
		row[ColDate] = patch.Date.UTC()
	}
	putString(row, ColSummary, patch.Summary)
	putString(row, ColTranscript, patch.Transcript)
	return row
}

// ---------------------------------------------------------------------------------//
// Child inputs
// --------------------------------------------------------------------------------//

type ContactMethodInput struct {
	Type      string `json:"type" validate:"required,notblank,max=50"`
	Value     string `json:"value" validate:"required,notblank,max=500"`
	IsPrimary bool   `json:"isPrimary"`
}

func (input ContactMethodInput) Row(contactID string) ContactMethodRow {
	return ContactMethodRow{
		ColType:      input.Type,
		ColValue:     input.Value,
		ColIsPrimary: input.IsPrimary,
		ColContactID: contactID,
	}
}

type SocialLinkInput struct {
	Platform string `json:"platform" validate:"required,notblank,max=50"`
	URL      string `json:"url" validate:"required,url"`
}

func (input SocialLinkInput) Row(contactID string) SocialLinkRow {
	return SocialLinkRow{
		ColPlatform:  input.Platform,
		ColURL:       input.URL,
		ColContactID: contactID,
	}
}

type ConversationInput struct {
	Date       time.Time `json:"date" validate:"required"`
	Summary    string    `json:"summary" validate:"required,notblank"`
	Transcript *string   `json:"transcript,omitempty"`
}

func (input ConversationInput) Row(contactID string) ConversationRow {
	row := ConversationRow{
		ColDate:      input.Date.UTC(),
		ColSummary:   input.Summary,
		ColContactID: contactID,
	}
	putString(row, ColTranscript, input.Transcript)
	return row
}
