package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
)

func (c *Client) CreateContact(ctx context.Context, ownerID string, contact schema.PartialContact) (schema.Contact, error) {
	created := schema.Contact{}
	err := c.send(ctx, "client.CreateContact", shared.GatewayError, http.MethodPost, userPath(ownerID, "contacts"), contact, &created)
	if err != nil {
		return schema.Contact{}, err
	}
	return created, nil
}

// UpdateContact applies patch to one contact of ownerID. A contact that does
// not exist or belongs to someone else yields shared.ErrNotFound.
func (c *Client) UpdateContact(ctx context.Context, id string, patch schema.PartialContact, ownerID string) error {
	_, err := c.UpdateAndFetchContact(ctx, id, patch, ownerID)
	return err
}

// UpdateAndFetchContact is UpdateContact returning the contact as stored after
// the update.
func (c *Client) UpdateAndFetchContact(ctx context.Context, id string, patch schema.PartialContact, ownerID string) (schema.Contact, error) {
	updated := schema.Contact{}
	err := c.send(ctx, "client.UpdateContact", shared.GatewayError, http.MethodPut, userPath(ownerID, "contacts", id), patch, &updated)
	if err != nil {
		return schema.Contact{}, err
	}
	return updated, nil
}

// Update sends a patch to the table it belongs to.
func (c *Client) Update(ctx context.Context, ownerID, id string, patch schema.Patch) error {
	if patch == nil {
		return shared.Validationf("client.Update", "valid fields required")
	}
	return c.send(ctx, "client.Update", shared.GatewayError, http.MethodPut, userPath(ownerID, patch.Table(), id), patch, nil)
}

func (c *Client) ListContactsForUser(ctx context.Context, ownerID string) ([]schema.Contact, error) {
	contacts := []schema.Contact{}
	err := c.send(ctx, "client.ListContactsForUser", shared.GatewayError, http.MethodGet, userPath(ownerID, "contacts"), nil, &contacts)
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (c *Client) DeleteContact(ctx context.Context, id, ownerID string) error {
	return c.send(ctx, "client.DeleteContact", shared.GatewayError, http.MethodDelete, userPath(ownerID, "contacts", id), nil, nil)
}

func (c *Client) AddContactMethod(ctx context.Context, ownerID, contactID string, input schema.ContactMethodInput) (schema.ContactMethod, error) {
	method := schema.ContactMethod{}
	err := c.send(ctx, "client.AddContactMethod", shared.GatewayError, http.MethodPost,
		userPath(ownerID, "contacts", contactID, schema.TableContactMethods), input, &method)
	if err != nil {
		return schema.ContactMethod{}, err
	}
	return method, nil
}

func (c *Client) AddSocialLink(ctx context.Context, ownerID, contactID string, input schema.SocialLinkInput) (schema.SocialLink, error) {
	link := schema.SocialLink{}
	err := c.send(ctx, "client.AddSocialLink", shared.GatewayError, http.MethodPost,
		userPath(ownerID, "contacts", contactID, schema.TableSocialLinks), input, &link)
	if err != nil {
		return schema.SocialLink{}, err
	}
	return link, nil
}

func (c *Client) AddConversation(ctx context.Context, ownerID, contactID string, input schema.ConversationInput) (schema.Conversation, error) {
	conversation := schema.Conversation{}
	err := c.send(ctx, "client.AddConversation", shared.GatewayError, http.MethodPost,
		userPath(ownerID, "contacts", contactID, schema.TableConversations), input, &conversation)
	if err != nil {
		return schema.Conversation{}, err
	}
	return conversation, nil
}

func (c *Client) FindProfile(ctx context.Context, id string) (schema.User, error) {
	user := schema.User{}
	err := c.send(ctx, "client.FindProfile", shared.GatewayError, http.MethodGet, userPath(id), nil, &user)
	if err != nil {
		return schema.User{}, err
	}
	return user, nil
}

// ---------------------------------------------------------------------------------//
// Enrichment
// --------------------------------------------------------------------------------//

func (c *Client) UploadContactImage(ctx context.Context, file shared.File, ownerID string) (string, error) {
	const op = "client.UploadContactImage"

	req, err := multipartRequest(op, userPath(ownerID, "images"), file)
	if err != nil {
		return "", err
	}
	if req, err = c.authorized(ctx, req); err != nil {
		return "", err
	}

	data := struct {
		URL string `json:"url"`
	}{}
	if err := c.do(ctx, req, &data); err != nil {
		return "", err
	}
	return data.URL, nil
}

func (c *Client) UploadImageFromURL(ctx context.Context, remoteURL, ownerID string) (string, error) {
	data := struct {
		URL string `json:"url"`
	}{}
	err := c.send(ctx, "client.UploadImageFromURL", shared.UploadError, http.MethodPost, userPath(ownerID, "images", "remote"),
		map[string]string{"url": remoteURL}, &data)
	if err != nil {
		return "", err
	}
	return data.URL, nil
}

func (c *Client) FetchLinkedInProfile(ctx context.Context, profileURL string) (schema.Profile, error) {
	profile := schema.Profile{}
	err := c.send(ctx, "client.FetchLinkedInProfile", shared.FetchError, http.MethodGet,
		"/profiles/linkedin?url="+url.QueryEscape(profileURL), nil, &profile)
	if err != nil {
		return schema.Profile{}, err
	}
	return profile, nil
}

// send performs one authorized JSON request.
func (c *Client) send(ctx context.Context, op string, kind shared.ErrorKind, method, path string, payload, out interface{}) error {
	req, err := jsonRequest(op, kind, method, path, payload)
	if err != nil {
		return err
	}
	if req, err = c.authorized(ctx, req); err != nil {
		return err
	}
	return c.do(ctx, req, out)
}
