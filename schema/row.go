package schema

import (
	"fmt"
	"time"
)

// ToRow maps a partial contact to the columns of the contacts table.
// Absent fields are left out of the row so it can be used as an update patch.
func ToRow(contact PartialContact) ContactRow {
	row := ContactRow{}
	putString(row, ColName, contact.Name)
	putString(row, ColJobTitle, contact.JobTitle)
	putString(row, ColImageURL, contact.ImageURL)
	putString(row, ColAbout, contact.About)
	putString(row, ColWebsite, contact.Website)
	putString(row, ColCalendarLink, contact.CalendarLink)
	putString(row, ColCategory, contact.Category)

	if contact.Tags != nil {
		row[ColTags] = append([]string{}, contact.Tags...)
	}

	return row
}

// FromRow maps a contacts row (optionally carrying its nested children under
// their table names) back to a Contact.
func FromRow(row ContactRow) (Contact, error) {
	var err error
	contact := Contact{}

	if contact.ID, err = stringColumn(row, ColID); err != nil {
		return Contact{}, err
	}
	if contact.Name, err = stringColumn(row, ColName); err != nil {
		return Contact{}, err
	}
	if contact.UserID, err = stringColumn(row, ColUserID); err != nil {
		return Contact{}, err
	}

	optional := []struct {
		column string
		dest   **string
	}{
		{ColJobTitle, &contact.JobTitle},
		{ColImageURL, &contact.ImageURL},
		{ColAbout, &contact.About},
		{ColWebsite, &contact.Website},
		{ColCalendarLink, &contact.CalendarLink},
		{ColCategory, &contact.Category},
	}
	for _, field := range optional {
		if *field.dest, err = optionalStringColumn(row, field.column); err != nil {
			return Contact{}, err
		}
	}

	if contact.Tags, err = tagsColumn(row, ColTags); err != nil {
		return Contact{}, err
	}
	if contact.CreatedAt, err = timeColumn(row, ColCreatedAt); err != nil {
		return Contact{}, err
	}
	if contact.UpdatedAt, err = timeColumn(row, ColUpdatedAt); err != nil {
		return Contact{}, err
	}

	contact.ContactMethods = []ContactMethod{}
	contact.SocialLinks = []SocialLink{}
	contact.Conversations = []Conversation{}

	methods, err := nestedRows(row, TableContactMethods)
	if err != nil {
		return Contact{}, err
	}
	for _, methodRow := range methods {
		method, err := ContactMethodFromRow(ContactMethodRow(methodRow))
		if err != nil {
			return Contact{}, err
		}
		contact.ContactMethods = append(contact.ContactMethods, method)
	}

	links, err := nestedRows(row, TableSocialLinks)
	if err != nil {
		return Contact{}, err
	}
	for _, linkRow := range links {
		link, err := SocialLinkFromRow(SocialLinkRow(linkRow))
		if err != nil {
			return Contact{}, err
		}
		contact.SocialLinks = append(contact.SocialLinks, link)
	}

	conversations, err := nestedRows(row, TableConversations)
	if err != nil {
		return Contact{}, err
	}
	for _, conversationRow := range conversations {
		conversation, err := ConversationFromRow(ConversationRow(conversationRow))
		if err != nil {
			return Contact{}, err
		}
		contact.Conversations = append(contact.Conversations, conversation)
	}

	return contact, nil
}

// Partial returns the writable fields of a contact as a full patch.
func (contact Contact) Partial() PartialContact {
	tags := contact.Tags
	if tags == nil {
		tags = []string{}
	}

	return PartialContact{
		Name:         String(contact.Name),
		JobTitle:     contact.JobTitle,
		ImageURL:     contact.ImageURL,
		About:        contact.About,
		Website:      contact.Website,
		CalendarLink: contact.CalendarLink,
		Category:     contact.Category,
		Tags:         tags,
	}
}

// Apply returns a copy of contact with every present field of patch written over it.
func (contact Contact) Apply(patch PartialContact) Contact {
	if patch.Name != nil {
		contact.Name = *patch.Name
	}

	for _, field := range []struct {
		dst **string
		src *string
	}{
		{&contact.JobTitle, patch.JobTitle},
		{&contact.ImageURL, patch.ImageURL},
		{&contact.About, patch.About},
		{&contact.Website, patch.Website},
		{&contact.CalendarLink, patch.CalendarLink},
		{&contact.Category, patch.Category},
	} {
		if field.src != nil {
			*field.dst = String(*field.src)
		}
	}

	if patch.Tags != nil {
		contact.Tags = append([]string{}, patch.Tags...)
	}

	return contact
}

func UserFromRow(row UserRow) (User, error) {
	var err error
	user := User{}

	if user.ID, err = stringColumn(row, ColID); err != nil {
		return User{}, err
	}
	if user.Email, err = stringColumn(row, ColEmail); err != nil {
		return User{}, err
	}
	if user.Name, err = stringColumn(row, ColName); err != nil {
		return User{}, err
	}
	if user.CreatedAt, err = timeColumn(row, ColCreatedAt); err != nil {
		return User{}, err
	}

	return user, nil
}

func ContactMethodFromRow(row ContactMethodRow) (ContactMethod, error) {
	var err error
	method := ContactMethod{}

	if method.ID, err = stringColumn(row, ColID); err != nil {
		return ContactMethod{}, err
	}
	if method.Type, err = stringColumn(row, ColType); err != nil {
		return ContactMethod{}, err
	}
	if method.Value, err = stringColumn(row, ColValue); err != nil {
		return ContactMethod{}, err
	}
	if method.IsPrimary, err = boolColumn(row, ColIsPrimary); err != nil {
		return ContactMethod{}, err
	}
	if method.ContactID, err = stringColumn(row, ColContactID); err != nil {
		return ContactMethod{}, err
	}

	return method, nil
}

func SocialLinkFromRow(row SocialLinkRow) (SocialLink, error) {
	var err error
	link := SocialLink{}

	if link.ID, err = stringColumn(row, ColID); err != nil {
		return SocialLink{}, err
	}
	if link.Platform, err = stringColumn(row, ColPlatform); err != nil {
		return SocialLink{}, err
	}
	if link.URL, err = stringColumn(row, ColURL); err != nil {
		return SocialLink{}, err
	}
	if link.ContactID, err = stringColumn(row, ColContactID); err != nil {
		return SocialLink{}, err
	}

	return link, nil
}

func ConversationFromRow(row ConversationRow) (Conversation, error) {
	var err error
	conversation := Conversation{}

	if conversation.ID, err = stringColumn(row, ColID); err != nil {
		return Conversation{}, err
	}
	if conversation.Date, err = timeColumn(row, ColDate); err != nil {
		return Conversation{}, err
	}
	if conversation.Summary, err = stringColumn(row, ColSummary); err != nil {
		return Conversation{}, err
	}
	if conversation.Transcript, err = optionalStringColumn(row, ColTranscript); err != nil {
		return Conversation{}, err
	}
	if conversation.ContactID, err = stringColumn(row, ColContactID); err != nil {
		return Conversation{}, err
	}
	if conversation.CreatedAt, err = timeColumn(row, ColCreatedAt); err != nil {
		return Conversation{}, err
	}
	if conversation.UpdatedAt, err = timeColumn(row, ColUpdatedAt); err != nil {
		return Conversation{}, err
	}

	return conversation, nil
}

// ---------------------------------------------------------------------------------//
// Column helpers
// --------------------------------------------------------------------------------//

func putString(row map[string]interface{}, column string, value *string) {
	if value != nil {
		row[column] = *value
	}
}

func stringColumn(row map[string]interface{}, column string) (string, error) {
	value, err := optionalStringColumn(row, column)
	if err != nil || value == nil {
		return "", err
	}
	return *value, nil
}

func optionalStringColumn(row map[string]interface{}, column string) (*string, error) {
	switch value := row[column].(type) {
	case nil:
		return nil, nil
	case string:
		return &value, nil
	case *string:
		if value == nil {
			return nil, nil
		}
		copied := *value
		return &copied, nil
	case []byte:
		copied := string(value)
		return &copied, nil
	default:
		return nil, malformed(column, value)
	}
}

func boolColumn(row map[string]interface{}, column string) (bool, error) {
	switch value := row[column].(type) {
	case nil:
		return false, nil
	case bool:
		return value, nil
	case *bool:
		return value != nil && *value, nil
	default:
		return false, malformed(column, value)
	}
}

func timeColumn(row map[string]interface{}, column string) (time.Time, error) {
	switch value := row[column].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return value, nil
	case *time.Time:
		if value == nil {
			return time.Time{}, nil
		}
		return *value, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}, malformed(column, value)
		}
		return parsed, nil
	default:
		return time.Time{}, malformed(column, value)
	}
}

func tagsColumn(row map[string]interface{}, column string) ([]string, error) {
	switch value := row[column].(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, value...), nil
	case []interface{}:
		tags := make([]string, 0, len(value))
		for _, tag := range value {
			str, ok := tag.(string)
			if !ok {
				return nil, malformed(column, value)
			}
			tags = append(tags, str)
		}
		return tags, nil
	default:
		return nil, malformed(column, value)
	}
}

func nestedRows(row map[string]interface{}, column string) ([]map[string]interface{}, error) {
	switch value := row[column].(type) {
	case nil:
		return nil, nil
	case []map[string]interface{}:
		return value, nil
	case []ContactMethodRow:
		rows := make([]map[string]interface{}, 0, len(value))
		for _, r := range value {
			rows = append(rows, r)
		}
		return rows, nil
	case []SocialLinkRow:
		rows := make([]map[string]interface{}, 0, len(value))
		for _, r := range value {
			rows = append(rows, r)
		}
		return rows, nil
	case []ConversationRow:
		rows := make([]map[string]interface{}, 0, len(value))
		for _, r := range value {
			rows = append(rows, r)
		}
		return rows, nil
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(value))
		for _, r := range value {
			m, ok := r.(map[string]interface{})
			if !ok {
				return nil, malformed(column, value)
			}
			rows = append(rows, m)
		}
		return rows, nil
	default:
		return nil, malformed(column, value)
	}
}

func malformed(column string, value interface{}) error {
	return fmt.Errorf("malformed %q column: unexpected %T", column, value)
}
