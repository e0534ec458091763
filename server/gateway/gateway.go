// Package gateway performs the contact and profile operations against the
// store. Each call is exactly one store operation (plus an ownership probe
// where a child row is written); nothing is retried and nothing spans tables
// in a transaction.
package gateway

import (
	"context"
	"strings"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/server/models"
	"github.com/Daskott/rolodex/shared"
	"github.com/go-playground/validator"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Gateway struct {
	store    *models.Store
	validate *validator.Validate
}

func New(store *models.Store, validate *validator.Validate) *Gateway {
	return &Gateway{store: store, validate: validate}
}

// CreateContact inserts one contact owned by ownerID and returns it with its
// generated id and timestamps.
func (g *Gateway) CreateContact(ctx context.Context, ownerID string, contact schema.PartialContact) (schema.Contact, error) {
	const op = "gateway.CreateContact"

	if contact.Name == nil || strings.TrimSpace(*contact.Name) == "" {
		return schema.Contact{}, shared.Validationf(op, "name is required")
	}
	if err := g.check(op, contact); err != nil {
		return schema.Contact{}, err
	}

	created, err := g.store.CreateContact(ctx, ownerID, schema.ToRow(contact))
	if err != nil {
		return schema.Contact{}, shared.E(shared.GatewayError, op, err)
	}

	return toContact(op, created)
}

// UpdateContact applies patch to the contact id owned by ownerID. A contact
// that does not exist or belongs to someone else yields shared.ErrNotFound.
func (g *Gateway) UpdateContact(ctx context.Context, id string, patch schema.PartialContact, ownerID string) error {
	return g.Update(ctx, ownerID, id, patch)
}

// Update validates patch and dispatches it to the table it belongs to.
func (g *Gateway) Update(ctx context.Context, ownerID, id string, patch schema.Patch) error {
	const op = "gateway.Update"

	if patch == nil {
		return shared.Validationf(op, "valid fields required")
	}
	if err := g.check(op, patch); err != nil {
		return err
	}

	row := patch.Row()
	if len(row) == 0 {
		return shared.Validationf(op, "valid fields required")
	}

	var affected int64
	var err error

	switch patch.Table() {
	case schema.TableContacts:
		affected, err = g.store.UpdateContact(ctx, id, ownerID, row)
	case schema.TableContactMethods, schema.TableSocialLinks, schema.TableConversations:
		affected, err = g.store.UpdateContactChild(ctx, patch.Table(), id, ownerID, row)
	default:
		return shared.Validationf(op, "%q cannot be updated", patch.Table())
	}

	if err != nil {
		return shared.E(shared.GatewayError, op, err)
	}
	if affected == 0 {
		return shared.E(shared.GatewayError, op, shared.ErrNotFound)
	}

	if methodPatch, ok := patch.(schema.ContactMethodPatch); ok && methodPatch.IsPrimary != nil && *methodPatch.IsPrimary {
		method, err := g.store.FindOwnedContactMethod(ctx, id, ownerID)
		if err != nil {
			return shared.E(shared.GatewayError, op, err)
		}
		if err := g.store.ClearOtherPrimaryMethods(ctx, method.ContactID, method.Type, method.ID); err != nil {
			return shared.E(shared.GatewayError, op, err)
		}
	}

	return nil
}

// ListContactsForUser returns every contact of ownerID, children included.
func (g *Gateway) ListContactsForUser(ctx context.Context, ownerID string) ([]schema.Contact, error) {
	const op = "gateway.ListContactsForUser"

	rows, err := g.store.ContactsForUser(ctx, ownerID)
	if err != nil {
		return nil, shared.E(shared.GatewayError, op, err)
	}

	contacts := make([]schema.Contact, 0, len(rows))
	for i := range rows {
		contact, err := toContact(op, &rows[i])
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}

	return contacts, nil
}

func (g *Gateway) FindContact(ctx context.Context, id, ownerID string) (schema.Contact, error) {
	const op = "gateway.FindContact"

	row, err := g.store.FindContact(ctx, id, ownerID)
	if err != nil {
		return schema.Contact{}, shared.E(shared.GatewayError, op, notFound(err))
	}

	return toContact(op, row)
}

func (g *Gateway) DeleteContact(ctx context.Context, id, ownerID string) error {
	const op = "gateway.DeleteContact"

	deleted, err := g.store.DeleteContact(ctx, id, ownerID)
	if err != nil {
		return shared.E(shared.GatewayError, op, err)
	}
	if deleted == 0 {
		return shared.E(shared.GatewayError, op, shared.ErrNotFound)
	}

	return nil
}

// ---------------------------------------------------------------------------------//
// Contact children
// --------------------------------------------------------------------------------//

// AddContactMethod adds a method to an owned contact. A primary method
// demotes the contact's other methods of the same type.
func (g *Gateway) AddContactMethod(ctx context.Context, ownerID, contactID string, input schema.ContactMethodInput) (schema.ContactMethod, error) {
	const op = "gateway.AddContactMethod"

	if err := g.checkChild(ctx, op, ownerID, contactID, input); err != nil {
		return schema.ContactMethod{}, err
	}

	method, err := g.store.CreateContactMethod(ctx, input.Row(contactID))
	if err != nil {
		return schema.ContactMethod{}, shared.E(shared.GatewayError, op, err)
	}

	if method.IsPrimary {
		err = g.store.ClearOtherPrimaryMethods(ctx, contactID, method.Type, method.ID)
		if err != nil {
			return schema.ContactMethod{}, shared.E(shared.GatewayError, op, err)
		}
	}

	result, err := schema.ContactMethodFromRow(method.Row())
	return result, shared.E(shared.GatewayError, op, err)
}

func (g *Gateway) AddSocialLink(ctx context.Context, ownerID, contactID string, input schema.SocialLinkInput) (schema.SocialLink, error) {
	const op = "gateway.AddSocialLink"

	if err := g.checkChild(ctx, op, ownerID, contactID, input); err != nil {
		return schema.SocialLink{}, err
	}

	link, err := g.store.CreateSocialLink(ctx, input.Row(contactID))
	if err != nil {
		return schema.SocialLink{}, shared.E(shared.GatewayError, op, err)
	}

	result, err := schema.SocialLinkFromRow(link.Row())
	return result, shared.E(shared.GatewayError, op, err)
}

func (g *Gateway) AddConversation(ctx context.Context, ownerID, contactID string, input schema.ConversationInput) (schema.Conversation, error) {
	const op = "gateway.AddConversation"

	if err := g.checkChild(ctx, op, ownerID, contactID, input); err != nil {
		return schema.Conversation{}, err
	}

	conversation, err := g.store.CreateConversation(ctx, input.Row(contactID))
	if err != nil {
		return schema.Conversation{}, shared.E(shared.GatewayError, op, err)
	}

	result, err := schema.ConversationFromRow(conversation.Row())
	return result, shared.E(shared.GatewayError, op, err)
}

// ---------------------------------------------------------------------------------//
// Profiles
// --------------------------------------------------------------------------------//

// CreateProfile inserts the users row linked to an auth credential.
func (g *Gateway) CreateProfile(ctx context.Context, user schema.User) (schema.User, error) {
	const op = "gateway.CreateProfile"

	if user.ID == "" || strings.TrimSpace(user.Name) == "" {
		return schema.User{}, shared.Validationf(op, "id and name are required")
	}
	if err := g.validate.Var(user.Email, "required,email"); err != nil {
		return schema.User{}, shared.E(shared.ValidationError, op, err)
	}

	row := models.User{Email: user.Email, Name: user.Name}
	row.ID = user.ID

	if err := g.store.CreateUser(ctx, &row); err != nil {
		return schema.User{}, shared.E(shared.GatewayError, op, err)
	}

	result, err := schema.UserFromRow(row.Row())
	return result, shared.E(shared.GatewayError, op, err)
}

func (g *Gateway) FindProfile(ctx context.Context, id string) (schema.User, error) {
	const op = "gateway.FindProfile"

	row, err := g.store.FindUser(ctx, id)
	if err != nil {
		return schema.User{}, shared.E(shared.GatewayError, op, notFound(err))
	}

	result, err := schema.UserFromRow(row.Row())
	return result, shared.E(shared.GatewayError, op, err)
}

// DeleteProfile removes the users row and every contact it owns. Deleting a
// profile that does not exist is not an error.
func (g *Gateway) DeleteProfile(ctx context.Context, id string) error {
	const op = "gateway.DeleteProfile"
	return shared.E(shared.GatewayError, op, g.store.DeleteUser(ctx, id))
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (g *Gateway) check(op string, value interface{}) error {
	if err := g.validate.Struct(value); err != nil {
		return shared.E(shared.ValidationError, op, err)
	}
	return nil
}

func (g *Gateway) checkChild(ctx context.Context, op, ownerID, contactID string, input interface{}) error {
	if err := g.check(op, input); err != nil {
		return err
	}

	owned, err := g.store.ContactBelongsTo(ctx, contactID, ownerID)
	if err != nil {
		return shared.E(shared.GatewayError, op, err)
	}
	if !owned {
		return shared.E(shared.GatewayError, op, shared.ErrNotFound)
	}

	return nil
}

func toContact(op string, row *models.Contact) (schema.Contact, error) {
	contact, err := schema.FromRow(row.Row())
	if err != nil {
		return schema.Contact{}, shared.E(shared.GatewayError, op, err)
	}
	return contact, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
