package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) AccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

// newStubServer answers every request with status and payload, recording
// what it was sent.
func newStubServer(t *testing.T, status int, payload map[string]interface{}) (*httptest.Server, *[]recordedRequest) {
	requests := []recordedRequest{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
			body:   string(body),
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(ts.Close)

	return ts, &requests
}

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	c, err := New(shared.APIConfig{URL: ts.URL + "/", Key: "test-key"}, ts.Client())
	require.Nil(t, err)
	return c
}

func TestNewFailsFast(t *testing.T) {
	cases := []shared.APIConfig{
		{},
		{URL: "http://localhost:3000"},
		{Key: "test-key"},
		{URL: "not a url", Key: "test-key"},
	}

	for _, config := range cases {
		_, err := New(config, nil)
		assert.True(t, shared.IsKind(err, shared.ValidationError), "%+v should be rejected", config)
	}
}

func TestRequestHeaders(t *testing.T) {
	ts, requests := newStubServer(t, http.StatusOK, map[string]interface{}{
		"success": true,
		"errors":  []string{},
		"data":    []interface{}{},
	})
	c := newTestClient(t, ts).Authorized(staticTokens("access-1"))

	contacts, err := c.ListContactsForUser(context.Background(), "u1")
	assert.Nil(t, err)
	assert.Empty(t, contacts)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/users/u1/contacts", req.path)
	assert.Equal(t, "test-key", req.header.Get("apikey"))
	assert.Equal(t, "Bearer access-1", req.header.Get("Authorization"))
}

func TestCreateContact(t *testing.T) {
	ts, requests := newStubServer(t, http.StatusCreated, map[string]interface{}{
		"success": true,
		"errors":  []string{},
		"data":    map[string]interface{}{"id": "c1", "name": "Ada", "userId": "u1", "tags": []string{}},
	})
	c := newTestClient(t, ts).Authorized(staticTokens("access-1"))

	contact, err := c.CreateContact(context.Background(), "u1", schema.PartialContact{Name: schema.String("Ada")})
	assert.Nil(t, err)
	assert.Equal(t, "c1", contact.ID)
	assert.Equal(t, "Ada", contact.Name)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"Ada","tags":null}`, req.body)
}

func TestUpdateAndFetchContact(t *testing.T) {
	ts, requests := newStubServer(t, http.StatusOK, map[string]interface{}{
		"success": true,
		"errors":  []string{},
		"data":    map[string]interface{}{"id": "c1", "name": "Ada Lovelace", "userId": "u1", "updatedAt": "2024-01-01T01:00:00Z"},
	})
	c := newTestClient(t, ts).Authorized(staticTokens("access-1"))

	contact, err := c.UpdateAndFetchContact(context.Background(), "c1", schema.PartialContact{Name: schema.String("Ada Lovelace")}, "u1")
	assert.Nil(t, err)
	assert.Equal(t, "Ada Lovelace", contact.Name)
	assert.Equal(t, 2024, contact.UpdatedAt.Year())

	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/users/u1/contacts/c1", req.path)
}

func TestUpdateRoutesByTable(t *testing.T) {
	ts, requests := newStubServer(t, http.StatusOK, map[string]interface{}{"success": true, "errors": []string{}})
	c := newTestClient(t, ts).Authorized(staticTokens("access-1"))

	assert.Nil(t, c.Update(context.Background(), "u1", "m1", schema.ContactMethodPatch{Value: schema.String("ada@example.com")}))
	assert.Nil(t, c.Update(context.Background(), "u1", "l1", schema.SocialLinkPatch{URL: schema.String("https://ada.dev")}))

	assert.Equal(t, "/users/u1/contact_methods/m1", (*requests)[0].path)
	assert.Equal(t, "/users/u1/social_links/l1", (*requests)[1].path)

	err := c.Update(context.Background(), "u1", "m1", nil)
	assert.True(t, shared.IsKind(err, shared.ValidationError))
	assert.Len(t, *requests, 2)
}

func TestDataRequestsNeedTokens(t *testing.T) {
	ts, requests := newStubServer(t, http.StatusOK, map[string]interface{}{"success": true})
	c := newTestClient(t, ts)

	_, err := c.ListContactsForUser(context.Background(), "u1")
	assert.True(t, shared.IsKind(err, shared.AuthError))
	assert.Empty(t, *requests, "Nothing should be sent without a token")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status   int
		kind     string
		message  string
		sentinel error
		expected shared.ErrorKind
	}{
		{http.StatusNotFound, "gateway", "record not found", shared.ErrNotFound, shared.GatewayError},
		{http.StatusForbidden, "auth", "action is forbidden", shared.ErrForbidden, shared.AuthError},
		{http.StatusUnauthorized, "auth", shared.ErrInvalidCredentials.Error(), shared.ErrInvalidCredentials, shared.AuthError},
		{http.StatusUnauthorized, "auth", shared.ErrSessionRevoked.Error(), shared.ErrSessionRevoked, shared.AuthError},
		{http.StatusBadRequest, "validation", "name is required", nil, shared.ValidationError},
		{http.StatusInternalServerError, "", "", nil, shared.GatewayError},
	}

	for _, c := range cases {
		errs := []string{}
		if c.message != "" {
			errs = append(errs, c.message)
		}
		ts, _ := newStubServer(t, c.status, map[string]interface{}{"success": false, "errors": errs, "kind": c.kind})
		api := newTestClient(t, ts).Authorized(staticTokens("access-1"))

		err := api.DeleteContact(context.Background(), "c1", "u1")

		assert.Equal(t, c.expected, shared.KindOf(err), "status %d", c.status)
		if c.sentinel != nil {
			assert.True(t, errors.Is(err, c.sentinel), "status %d should map to %v", c.status, c.sentinel)
		}
		if c.message == "" {
			assert.Equal(t, http.StatusText(c.status), shared.Message(err))
		} else {
			assert.Equal(t, c.message, shared.Message(err))
		}
	}
}

func TestUnexpectedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts).SignInWithPassword(context.Background(), shared.PasswordGrant{Email: "ada@example.com", Password: "x"})
	assert.True(t, shared.IsKind(err, shared.AuthError))
	assert.True(t, strings.Contains(err.Error(), "status 502"))
}

func TestTokenRequests(t *testing.T) {
	ts, requests := newStubServer(t, http.StatusOK, map[string]interface{}{
		"success": true,
		"errors":  []string{},
		"data": map[string]interface{}{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "bearer",
			"expires_in":    3600,
		},
	})
	c := newTestClient(t, ts)

	session, err := c.Refresh(context.Background(), "refresh-1")
	assert.Nil(t, err)
	assert.Equal(t, "access-2", session.AccessToken)

	req := (*requests)[0]
	assert.Equal(t, "/auth/token", req.path)
	assert.Equal(t, "grant_type=refresh_token", req.query)
	assert.Empty(t, req.header.Get("Authorization"))
	assert.JSONEq(t, `{"refresh_token":"refresh-1"}`, req.body)
}

func TestUploadContactImage(t *testing.T) {
	var fileName, contentType, content string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err == nil {
			data, _ := io.ReadAll(file)
			fileName, contentType, content = header.Filename, header.Header.Get("Content-Type"), string(data)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]string{"url": "https://cdn.test/u1/a.png"},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, ts).Authorized(staticTokens("access-1"))
	url, err := c.UploadContactImage(context.Background(), shared.File{
		Name:        "ada.png",
		ContentType: "image/png",
		Size:        3,
		Content:     strings.NewReader("png"),
	}, "u1")

	assert.Nil(t, err)
	assert.Equal(t, "https://cdn.test/u1/a.png", url)
	assert.Equal(t, "ada.png", fileName)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "png", content)
}
