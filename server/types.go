package server

import "github.com/Daskott/rolodex/server/auth"

type ResponsePayload struct {
	Errors  []string    `json:"errors"`
	Success bool        `json:"success"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type DecodedJWT struct {
	Claims   *auth.RolodexTokenClaims
	ErrorMsg string
}

type RequestContextKey string

type remoteImageRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type imageResponse struct {
	URL string `json:"url"`
}
