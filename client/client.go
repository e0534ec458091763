// Package client talks to a rolodex server. Each method is exactly one HTTP
// request; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/Daskott/rolodex/shared"
	"github.com/go-playground/validator"
	"github.com/pkg/errors"
)

// TokenSource hands out the access token sent with data requests.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     TokenSource
}

type response struct {
	Errors  []string        `json:"errors"`
	Success bool            `json:"success"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// New checks the API settings and fails fast when either is missing.
func New(config shared.APIConfig, httpClient *http.Client) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, shared.E(shared.ValidationError, "client.New",
			errors.New("api.url and api.key must be set, e.g. via ROLODEX_API_URL and ROLODEX_API_KEY"))
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.URL, "/"),
		apiKey:     config.Key,
		httpClient: httpClient,
	}, nil
}

// Authorized returns a copy of the client that signs data requests with tokens.
func (c *Client) Authorized(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

type request struct {
	op          string
	kind        shared.ErrorKind
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func jsonRequest(op string, kind shared.ErrorKind, method, path string, payload interface{}) (request, error) {
	req := request{op: op, kind: kind, method: method, path: path}
	if payload == nil {
		return req, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return req, shared.E(shared.ValidationError, op, err)
	}

	req.body = bytes.NewReader(data)
	req.contentType = "application/json"
	return req, nil
}

// authorized fills in the token from the client's token source.
func (c *Client) authorized(ctx context.Context, req request) (request, error) {
	if c.tokens == nil {
		return req, shared.E(shared.AuthError, req.op, errors.New("not signed in"))
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return req, err
	}

	req.token = token
	return req, nil
}

func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return shared.E(req.kind, req.op, err)
	}

	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return shared.E(req.kind, req.op, err)
	}
	defer res.Body.Close()

	payload := response{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return shared.E(req.kind, req.op, fmt.Errorf("unexpected response (status %d): %v", res.StatusCode, err))
	}

	if res.StatusCode >= http.StatusBadRequest || !payload.Success {
		return responseError(req, res.StatusCode, payload)
	}

	if out != nil && len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, out); err != nil {
			return shared.E(req.kind, req.op, err)
		}
	}

	return nil
}

// responseError rebuilds the server's error, restoring the sentinel errors
// callers compare against.
func responseError(req request, status int, payload response) error {
	kind := shared.ErrorKind(payload.Kind)
	if kind == "" {
		kind = req.kind
	}

	message := strings.Join(payload.Errors, "\n")
	if message == "" {
		message = http.StatusText(status)
	}

	var cause error
	switch {
	case status == http.StatusNotFound:
		cause = shared.ErrNotFound
	case status == http.StatusForbidden:
		cause = shared.ErrForbidden
	case message == shared.ErrInvalidCredentials.Error():
		cause = shared.ErrInvalidCredentials
	case message == shared.ErrSessionRevoked.Error():
		cause = shared.ErrSessionRevoked
	default:
		cause = errors.New(message)
	}

	return shared.E(kind, req.op, cause)
}

func multipartRequest(op, path string, file shared.File) (request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return request{}, shared.E(shared.UploadError, op, err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return request{}, shared.E(shared.UploadError, op, err)
	}
	if err := writer.Close(); err != nil {
		return request{}, shared.E(shared.UploadError, op, err)
	}

	return request{
		op:          op,
		kind:        shared.UploadError,
		method:      http.MethodPost,
		path:        path,
		body:        body,
		contentType: writer.FormDataContentType(),
	}, nil
}

func userPath(ownerID string, parts ...string) string {
	segments := []string{"/users", url.PathEscape(ownerID)}
	for _, part := range parts {
		segments = append(segments, url.PathEscape(part))
	}
	return strings.Join(segments, "/")
}
