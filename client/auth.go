package client

import (
	"context"
	"net/http"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
)

func (c *Client) SignUp(ctx context.Context, data shared.SignUpRequest) (shared.Session, error) {
	return c.tokenRequest(ctx, "client.SignUp", "/auth/signup", data)
}

func (c *Client) SignInWithPassword(ctx context.Context, grant shared.PasswordGrant) (shared.Session, error) {
	return c.tokenRequest(ctx, "client.SignInWithPassword", "/auth/token?grant_type=password", grant)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (shared.Session, error) {
	return c.tokenRequest(ctx, "client.Refresh", "/auth/token?grant_type=refresh_token", shared.RefreshGrant{RefreshToken: refreshToken})
}

func (c *Client) ExchangeCode(ctx context.Context, grant shared.PKCEGrant) (shared.Session, error) {
	return c.tokenRequest(ctx, "client.ExchangeCode", "/auth/token?grant_type=pkce", grant)
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req := request{op: "client.SignOut", kind: shared.AuthError, method: http.MethodPost, path: "/auth/logout", token: accessToken}
	return c.do(ctx, req, nil)
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (shared.AuthUser, error) {
	user := shared.AuthUser{}
	req := request{op: "client.GetUser", kind: shared.AuthError, method: http.MethodGet, path: "/auth/user", token: accessToken}
	if err := c.do(ctx, req, &user); err != nil {
		return shared.AuthUser{}, err
	}
	return user, nil
}

func (c *Client) DeleteUser(ctx context.Context, accessToken string) error {
	req := request{op: "client.DeleteUser", kind: shared.AuthError, method: http.MethodDelete, path: "/auth/user", token: accessToken}
	return c.do(ctx, req, nil)
}

// Authorize mints a one-time code that whoever holds the verifier of
// codeChallenge can exchange for a session of the signed-in user.
func (c *Client) Authorize(ctx context.Context, accessToken, codeChallenge string) (string, error) {
	req, err := jsonRequest("client.Authorize", shared.AuthError, http.MethodPost, "/auth/authorize", shared.AuthorizeRequest{
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: "S256",
	})
	if err != nil {
		return "", err
	}
	req.token = accessToken

	data := shared.AuthorizeResponse{}
	if err := c.do(ctx, req, &data); err != nil {
		return "", err
	}
	return data.AuthCode, nil
}

// CreateProfile inserts the users row of a freshly signed up account.
func (c *Client) CreateProfile(ctx context.Context, accessToken string, user schema.User) (schema.User, error) {
	req, err := jsonRequest("client.CreateProfile", shared.GatewayError, http.MethodPost, "/users", user)
	if err != nil {
		return schema.User{}, err
	}
	req.token = accessToken

	created := schema.User{}
	if err := c.do(ctx, req, &created); err != nil {
		return schema.User{}, err
	}
	return created, nil
}

func (c *Client) tokenRequest(ctx context.Context, op, path string, payload interface{}) (shared.Session, error) {
	req, err := jsonRequest(op, shared.AuthError, http.MethodPost, path, payload)
	if err != nil {
		return shared.Session{}, err
	}

	session := shared.Session{}
	if err := c.do(ctx, req, &session); err != nil {
		return shared.Session{}, err
	}

	return session, nil
}
