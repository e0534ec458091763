package models

import (
	"context"
	"fmt"
	"time"

	"github.com/Daskott/rolodex/schema"
	"gorm.io/gorm"
)

type ContactMethod struct {
	ID        string `json:"id" gorm:"primarykey;type:varchar(36)"`
	Type      string `json:"type" gorm:"not null"`
	Value     string `json:"value" gorm:"not null"`
	IsPrimary bool   `json:"is_primary" gorm:"default:false"`
	ContactID string `json:"contact_id" gorm:"type:varchar(36);not null;index"`
}

type SocialLink struct {
	ID        string `json:"id" gorm:"primarykey;type:varchar(36)"`
	Platform  string `json:"platform" gorm:"not null"`
	URL       string `json:"url" gorm:"column:url;not null"`
	ContactID string `json:"contact_id" gorm:"type:varchar(36);not null;index"`
}

type Conversation struct {
	BaseModel
	Date       time.Time `json:"date" gorm:"not null"`
	Summary    string    `json:"summary" gorm:"not null"`
	Transcript *string   `json:"transcript"`
	ContactID  string    `json:"contact_id" gorm:"type:varchar(36);not null;index"`
}

func (method *ContactMethod) BeforeCreate(tx *gorm.DB) error {
	assignID(&method.ID)
	return nil
}

func (link *SocialLink) BeforeCreate(tx *gorm.DB) error {
	assignID(&link.ID)
	return nil
}

func (method *ContactMethod) Row() schema.ContactMethodRow {
	return schema.ContactMethodRow{
		schema.ColID:        method.ID,
		schema.ColType:      method.Type,
		schema.ColValue:     method.Value,
		schema.ColIsPrimary: method.IsPrimary,
		schema.ColContactID: method.ContactID,
	}
}

func (link *SocialLink) Row() schema.SocialLinkRow {
	return schema.SocialLinkRow{
		schema.ColID:        link.ID,
		schema.ColPlatform:  link.Platform,
		schema.ColURL:       link.URL,
		schema.ColContactID: link.ContactID,
	}
}

func (conversation *Conversation) Row() schema.ConversationRow {
	row := schema.ConversationRow{
		schema.ColID:        conversation.ID,
		schema.ColDate:      conversation.Date,
		schema.ColSummary:   conversation.Summary,
		schema.ColContactID: conversation.ContactID,
		schema.ColCreatedAt: conversation.CreatedAt,
		schema.ColUpdatedAt: conversation.UpdatedAt,
	}
	if conversation.Transcript != nil {
		row[schema.ColTranscript] = *conversation.Transcript
	}
	return row
}

// ---------------------------------------------------------------------------------//
// Queries
// --------------------------------------------------------------------------------//

func (s *Store) CreateContactMethod(ctx context.Context, row schema.ContactMethodRow) (*ContactMethod, error) {
	method := ContactMethod{}
	method.Type, _ = row[schema.ColType].(string)
	method.Value, _ = row[schema.ColValue].(string)
	method.IsPrimary, _ = row[schema.ColIsPrimary].(bool)
	method.ContactID, _ = row[schema.ColContactID].(string)

	err := s.db.WithContext(ctx).Create(&method).Error
	if err != nil {
		return nil, err
	}

	return &method, nil
}

func (s *Store) CreateSocialLink(ctx context.Context, row schema.SocialLinkRow) (*SocialLink, error) {
	link := SocialLink{}
	link.Platform, _ = row[schema.ColPlatform].(string)
	link.URL, _ = row[schema.ColURL].(string)
	link.ContactID, _ = row[schema.ColContactID].(string)

	err := s.db.WithContext(ctx).Create(&link).Error
	if err != nil {
		return nil, err
	}

	return &link, nil
}

func (s *Store) CreateConversation(ctx context.Context, row schema.ConversationRow) (*Conversation, error) {
	conversation := Conversation{}
	conversation.Date, _ = row[schema.ColDate].(time.Time)
	conversation.Summary, _ = row[schema.ColSummary].(string)
	conversation.Transcript = stringPtr(row[schema.ColTranscript])
	conversation.ContactID, _ = row[schema.ColContactID].(string)

	err := s.db.WithContext(ctx).Create(&conversation).Error
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

// UpdateContactChild updates a row of a child table, scoped to contacts owned
// by ownerID, and returns the number of rows affected.
func (s *Store) UpdateContactChild(ctx context.Context, table, id, ownerID string, columns map[string]interface{}) (int64, error) {
	model, err := childModel(table)
	if err != nil {
		return 0, err
	}

	owned := s.db.Model(&Contact{}).Select("id").Where("user_id = ?", ownerID)
	res := s.db.WithContext(ctx).Model(model).
		Where("id = ? AND contact_id IN (?)", id, owned).
		Updates(columns)

	return res.RowsAffected, res.Error
}

// ClearOtherPrimaryMethods unsets is_primary on the contact's other methods of the same type.
func (s *Store) ClearOtherPrimaryMethods(ctx context.Context, contactID, methodType, keepID string) error {
	return s.db.WithContext(ctx).Model(&ContactMethod{}).
		Where("contact_id = ? AND type = ? AND id <> ?", contactID, methodType, keepID).
		Update("is_primary", false).Error
}

// FindOwnedContactMethod returns a contact method whose contact belongs to ownerID.
func (s *Store) FindOwnedContactMethod(ctx context.Context, id, ownerID string) (*ContactMethod, error) {
	method := ContactMethod{}
	owned := s.db.Model(&Contact{}).Select("id").Where("user_id = ?", ownerID)
	err := s.db.WithContext(ctx).
		Where("id = ? AND contact_id IN (?)", id, owned).
		First(&method).Error
	if err != nil {
		return nil, err
	}

	return &method, nil
}

func childModel(table string) (interface{}, error) {
	switch table {
	case schema.TableContactMethods:
		return &ContactMethod{}, nil
	case schema.TableSocialLinks:
		return &SocialLink{}, nil
	case schema.TableConversations:
		return &Conversation{}, nil
	default:
		return nil, fmt.Errorf("%q is not a contact child table", table)
	}
}
