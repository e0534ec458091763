package models

import (
	"context"
	"database/sql/driver"

	"github.com/Daskott/rolodex/schema"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormSchema "gorm.io/gorm/schema"
)

// Tags is stored as a text[] on postgres and as its array literal text elsewhere.
type Tags []string

func (tags Tags) Value() (driver.Value, error) {
	if tags == nil {
		tags = Tags{}
	}
	return pq.StringArray(tags).Value()
}

func (tags *Tags) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*tags = Tags(arr)
	return nil
}

func (Tags) GormDataType() string {
	return "tags"
}

func (Tags) GormDBDataType(db *gorm.DB, field *gormSchema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

type Contact struct {
	BaseModel
	Name           string          `json:"name" gorm:"not null"`
	JobTitle       *string         `json:"job_title"`
	ImageURL       *string         `json:"image_url" gorm:"column:image_url"`
	About          *string         `json:"about"`
	Website        *string         `json:"website"`
	CalendarLink   *string         `json:"calendar_link"`
	Category       *string         `json:"category"`
	Tags           Tags            `json:"tags"`
	UserID         string          `json:"user_id" gorm:"type:varchar(36);not null;index"`
	ContactMethods []ContactMethod `json:"contact_methods,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SocialLinks    []SocialLink    `json:"social_links,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Conversations  []Conversation  `json:"conversations,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Row returns the contact as a contacts row with its loaded children nested
// under their table names.
func (contact *Contact) Row() schema.ContactRow {
	row := schema.ContactRow{
		schema.ColID:        contact.ID,
		schema.ColName:      contact.Name,
		schema.ColTags:      []string(contact.Tags),
		schema.ColUserID:    contact.UserID,
		schema.ColCreatedAt: contact.CreatedAt,
		schema.ColUpdatedAt: contact.UpdatedAt,
	}

	optional := map[string]*string{
		schema.ColJobTitle:     contact.JobTitle,
		schema.ColImageURL:     contact.ImageURL,
		schema.ColAbout:        contact.About,
		schema.ColWebsite:      contact.Website,
		schema.ColCalendarLink: contact.CalendarLink,
		schema.ColCategory:     contact.Category,
	}
	for column, value := range optional {
		if value != nil {
			row[column] = *value
		}
	}

	methods := make([]schema.ContactMethodRow, 0, len(contact.ContactMethods))
	for i := range contact.ContactMethods {
		methods = append(methods, contact.ContactMethods[i].Row())
	}
	links := make([]schema.SocialLinkRow, 0, len(contact.SocialLinks))
	for i := range contact.SocialLinks {
		links = append(links, contact.SocialLinks[i].Row())
	}
	conversations := make([]schema.ConversationRow, 0, len(contact.Conversations))
	for i := range contact.Conversations {
		conversations = append(conversations, contact.Conversations[i].Row())
	}

	row[schema.TableContactMethods] = methods
	row[schema.TableSocialLinks] = links
	row[schema.TableConversations] = conversations

	return row
}

// apply copies contacts-table columns onto the struct.
func (contact *Contact) apply(columns map[string]interface{}) {
	for column, value := range columns {
		switch column {
		case schema.ColName:
			contact.Name, _ = value.(string)
		case schema.ColJobTitle:
			contact.JobTitle = stringPtr(value)
		case schema.ColImageURL:
			contact.ImageURL = stringPtr(value)
		case schema.ColAbout:
			contact.About = stringPtr(value)
		case schema.ColWebsite:
			contact.Website = stringPtr(value)
		case schema.ColCalendarLink:
			contact.CalendarLink = stringPtr(value)
		case schema.ColCategory:
			contact.Category = stringPtr(value)
		case schema.ColTags:
			tags, _ := value.([]string)
			contact.Tags = Tags(tags)
		}
	}
}

// ---------------------------------------------------------------------------------//
// Queries
// --------------------------------------------------------------------------------//

// CreateContact inserts one contacts row owned by ownerID.
func (s *Store) CreateContact(ctx context.Context, ownerID string, columns map[string]interface{}) (*Contact, error) {
	contact := Contact{UserID: ownerID, Tags: Tags{}}
	contact.apply(columns)

	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&contact).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

// UpdateContact updates the contact only if it is owned by ownerID and
// returns the number of rows affected.
func (s *Store) UpdateContact(ctx context.Context, id, ownerID string, columns map[string]interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Contact{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(contactColumns(columns))

	return res.RowsAffected, res.Error
}

// ContactsForUser returns all of the user's contacts with their children.
func (s *Store) ContactsForUser(ctx context.Context, ownerID string) ([]Contact, error) {
	contacts := []Contact{}
	err := s.db.WithContext(ctx).
		Preload("ContactMethods").Preload("SocialLinks").Preload("Conversations").
		Where("user_id = ?", ownerID).
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func (s *Store) FindContact(ctx context.Context, id, ownerID string) (*Contact, error) {
	contact := Contact{}
	err := s.db.WithContext(ctx).
		Preload("ContactMethods").Preload("SocialLinks").Preload("Conversations").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&contact).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func (s *Store) ContactBelongsTo(ctx context.Context, contactID, ownerID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Contact{}).
		Where("id = ? AND user_id = ?", contactID, ownerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DeleteContact deletes the owner's contact and its children. Returns the
// number of contacts rows deleted.
func (s *Store) DeleteContact(ctx context.Context, id, ownerID string) (int64, error) {
	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contact := Contact{}
		res := tx.Select("id").Where("id = ? AND user_id = ?", id, ownerID).Limit(1).Find(&contact)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}

		if err := deleteContactTree(tx, &contact); err != nil {
			return err
		}
		deleted = 1
		return nil
	})

	return deleted, err
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func deleteContactTree(tx *gorm.DB, contact *Contact) error {
	return tx.Select(clause.Associations).Delete(contact).Error
}

func contactColumns(columns map[string]interface{}) map[string]interface{} {
	converted := make(map[string]interface{}, len(columns))
	for column, value := range columns {
		if tags, ok := value.([]string); ok && column == schema.ColTags {
			converted[column] = Tags(tags)
			continue
		}
		converted[column] = value
	}
	return converted
}

func stringPtr(value interface{}) *string {
	str, ok := value.(string)
	if !ok {
		return nil
	}
	return &str
}
