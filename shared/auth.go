package shared

import "time"

// AuthUser is the identity exposed by the auth subsystem.
type AuthUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an issued access/refresh token pair.
type Session struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         AuthUser `json:"user"`
}

// Expired reports whether the access token expires before now+margin.
func (s Session) Expired(now time.Time, margin time.Duration) bool {
	return s.ExpiresAt == 0 || now.Add(margin).Unix() >= s.ExpiresAt
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Name     string `json:"name" validate:"required,notblank"`
}

type PasswordGrant struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshGrant struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type PKCEGrant struct {
	AuthCode     string `json:"auth_code" validate:"required"`
	CodeVerifier string `json:"code_verifier" validate:"required,min=43,max=128"`
}

type AuthorizeRequest struct {
	CodeChallenge       string `json:"code_challenge" validate:"required"`
	CodeChallengeMethod string `json:"code_challenge_method" validate:"required,eq=S256"`
}

type AuthorizeResponse struct {
	AuthCode string `json:"auth_code"`
}
