// Package dashboard keeps the signed-in user's contacts in memory. The list
// only changes after the matching remote call succeeds.
package dashboard

import (
	"context"
	"sync"

	"github.com/Daskott/rolodex/schema"
)

type Gateway interface {
	ListContactsForUser(ctx context.Context, ownerID string) ([]schema.Contact, error)
	CreateContact(ctx context.Context, ownerID string, contact schema.PartialContact) (schema.Contact, error)
	UpdateContact(ctx context.Context, id string, patch schema.PartialContact, ownerID string) error
	DeleteContact(ctx context.Context, id, ownerID string) error
}

// fetchingUpdater is a Gateway that also returns the stored contact after an
// update, such as client.Client.
type fetchingUpdater interface {
	UpdateAndFetchContact(ctx context.Context, id string, patch schema.PartialContact, ownerID string) (schema.Contact, error)
}

type Dashboard struct {
	gateway Gateway
	ownerID string

	mu       sync.Mutex
	contacts []schema.Contact
}

func New(gateway Gateway, ownerID string) *Dashboard {
	return &Dashboard{gateway: gateway, ownerID: ownerID, contacts: []schema.Contact{}}
}

// Load replaces the list with the user's contacts from the backend.
func (d *Dashboard) Load(ctx context.Context) error {
	contacts, err := d.gateway.ListContactsForUser(ctx, d.ownerID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append([]schema.Contact{}, contacts...)
	return nil
}

// Add creates a contact and appends it once the backend has stored it.
// Concurrent adds are appended in the order they complete.
func (d *Dashboard) Add(ctx context.Context, contact schema.PartialContact) (schema.Contact, error) {
	created, err := d.gateway.CreateContact(ctx, d.ownerID, contact)
	if err != nil {
		return schema.Contact{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append(d.contacts, created)
	return created, nil
}

// Update applies patch remotely, then replaces the listed contact with the
// stored one. Gateways that do not return it get the patch applied in place.
func (d *Dashboard) Update(ctx context.Context, id string, patch schema.PartialContact) error {
	var stored *schema.Contact
	if fetcher, ok := d.gateway.(fetchingUpdater); ok {
		updated, err := fetcher.UpdateAndFetchContact(ctx, id, patch, d.ownerID)
		if err != nil {
			return err
		}
		if updated.ID == id {
			stored = &updated
		}
	} else if err := d.gateway.UpdateContact(ctx, id, patch, d.ownerID); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.contacts {
		if d.contacts[i].ID != id {
			continue
		}
		if stored != nil {
			d.contacts[i] = *stored
		} else {
			d.contacts[i] = d.contacts[i].Apply(patch)
		}
		break
	}
	return nil
}

func (d *Dashboard) Delete(ctx context.Context, id string) error {
	if err := d.gateway.DeleteContact(ctx, id, d.ownerID); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.contacts {
		if d.contacts[i].ID == id {
			d.contacts = append(d.contacts[:i], d.contacts[i+1:]...)
			break
		}
	}
	return nil
}

// Contacts returns a snapshot of the list.
func (d *Dashboard) Contacts() []schema.Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]schema.Contact{}, d.contacts...)
}
