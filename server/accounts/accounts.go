// Package accounts is the auth subsystem: credentials, sessions and the
// PKCE authorization code exchange.
package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/Daskott/rolodex/server/auth"
	"github.com/Daskott/rolodex/server/auth/key"
	"github.com/Daskott/rolodex/server/models"
	"github.com/Daskott/rolodex/shared"
	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultAccessTokenTTL = time.Hour
	DefaultSessionTTL     = 30 * 24 * time.Hour
	authCodeTTL           = 5 * time.Minute
	tokenIssuer           = "rolodex"
)

var (
	ErrUserExists      = errors.New("user already registered")
	ErrInvalidToken    = errors.New("invalid token provided")
	ErrInvalidVerifier = errors.New("code verifier does not match")
)

type Options struct {
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration
}

type Service struct {
	store    *models.Store
	keyPair  *key.KeyPair
	validate *validator.Validate
	logg     *zap.SugaredLogger
	opts     Options
	now      func() time.Time
}

func NewService(store *models.Store, keyPair *key.KeyPair, validate *validator.Validate, logg *zap.SugaredLogger, opts Options) *Service {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	return &Service{
		store:    store,
		keyPair:  keyPair,
		validate: validate,
		logg:     logg,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SignUp(ctx context.Context, req shared.SignUpRequest) (shared.Session, error) {
	const op = "accounts.SignUp"

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return shared.Session{}, shared.E(shared.ValidationError, op, err)
	}

	_, err := s.store.FindCredentialByEmail(ctx, req.Email)
	if err == nil {
		return shared.Session{}, shared.E(shared.AuthError, op, ErrUserExists)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	credential := models.Credential{Email: req.Email, PasswordHash: hash, Name: strings.TrimSpace(req.Name)}
	if err := s.store.CreateCredential(ctx, &credential); err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	s.logg.Infof("%v: registered credential %v", op, credential.ID)

	return s.issueSession(ctx, op, &credential)
}

func (s *Service) SignInWithPassword(ctx context.Context, grant shared.PasswordGrant) (shared.Session, error) {
	const op = "accounts.SignInWithPassword"

	grant.Email = strings.ToLower(strings.TrimSpace(grant.Email))
	if err := s.validate.Struct(grant); err != nil {
		return shared.Session{}, shared.E(shared.ValidationError, op, err)
	}

	credential, err := s.store.FindCredentialByEmail(ctx, grant.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.Session{}, shared.E(shared.AuthError, op, shared.ErrInvalidCredentials)
	}
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	if !auth.CheckPasswordHash(grant.Password, credential.PasswordHash) {
		return shared.Session{}, shared.E(shared.AuthError, op, shared.ErrInvalidCredentials)
	}

	return s.issueSession(ctx, op, credential)
}

// Authenticate decodes an access token and checks that its session is still active.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*auth.RolodexTokenClaims, error) {
	const op = "accounts.Authenticate"

	claims, err := auth.DecodeJWT(accessToken, s.keyPair)
	if err != nil {
		return nil, shared.E(shared.AuthError, op, ErrInvalidToken)
	}

	_, err = s.store.FindActiveSession(ctx, claims.SessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.E(shared.AuthError, op, shared.ErrSessionRevoked)
	}
	if err != nil {
		return nil, shared.E(shared.AuthError, op, err)
	}

	return claims, nil
}

func (s *Service) SignOut(ctx context.Context, claims *auth.RolodexTokenClaims) error {
	const op = "accounts.SignOut"
	return shared.E(shared.AuthError, op, s.store.RevokeSession(ctx, claims.SessionID))
}

func (s *Service) GetUser(ctx context.Context, id string) (shared.AuthUser, error) {
	const op = "accounts.GetUser"

	credential, err := s.store.FindCredential(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.AuthUser{}, shared.E(shared.AuthError, op, shared.ErrNotFound)
	}
	if err != nil {
		return shared.AuthUser{}, shared.E(shared.AuthError, op, err)
	}

	return authUser(credential), nil
}

// Refresh trades a refresh token for a new token pair. The old refresh token
// stops working as soon as the new one is issued.
func (s *Service) Refresh(ctx context.Context, grant shared.RefreshGrant) (shared.Session, error) {
	const op = "accounts.Refresh"

	if err := s.validate.Struct(grant); err != nil {
		return shared.Session{}, shared.E(shared.ValidationError, op, err)
	}

	oldHash := auth.HashOpaqueToken(grant.RefreshToken)
	session, err := s.store.FindSessionByRefreshHash(ctx, oldHash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.Session{}, shared.E(shared.AuthError, op, shared.ErrSessionRevoked)
	}
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	credential, err := s.store.FindCredential(ctx, session.UserID)
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, shared.ErrSessionRevoked)
	}

	refreshToken, err := auth.NewOpaqueToken()
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	rotated, err := s.store.RotateRefreshToken(ctx, session.ID, oldHash, auth.HashOpaqueToken(refreshToken), s.now().Add(s.opts.SessionTTL))
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}
	if !rotated {
		return shared.Session{}, shared.E(shared.AuthError, op, shared.ErrSessionRevoked)
	}

	return s.tokenPair(op, credential, session.ID, refreshToken)
}

// DeleteUser removes a credential along with all of its sessions.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	const op = "accounts.DeleteUser"

	err := s.store.DeleteCredential(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.E(shared.AuthError, op, shared.ErrNotFound)
	}
	if err != nil {
		return shared.E(shared.AuthError, op, err)
	}

	s.logg.Infof("%v: deleted credential %v", op, id)
	return nil
}

// Authorize mints a one-time code bound to an S256 code challenge. The code
// can be exchanged for a session by whoever holds the matching verifier.
func (s *Service) Authorize(ctx context.Context, userID string, req shared.AuthorizeRequest) (string, error) {
	const op = "accounts.Authorize"

	if err := s.validate.Struct(req); err != nil {
		return "", shared.E(shared.ValidationError, op, err)
	}

	code, err := auth.NewOpaqueToken()
	if err != nil {
		return "", shared.E(shared.AuthError, op, err)
	}

	err = s.store.CreateAuthCode(ctx, &models.AuthCode{
		UserID:        userID,
		CodeHash:      auth.HashOpaqueToken(code),
		CodeChallenge: req.CodeChallenge,
		ExpiresAt:     s.now().Add(authCodeTTL),
	})
	if err != nil {
		return "", shared.E(shared.AuthError, op, err)
	}

	return code, nil
}

func (s *Service) ExchangeCode(ctx context.Context, grant shared.PKCEGrant) (shared.Session, error) {
	const op = "accounts.ExchangeCode"

	if err := s.validate.Struct(grant); err != nil {
		return shared.Session{}, shared.E(shared.ValidationError, op, err)
	}

	code, err := s.store.ConsumeAuthCode(ctx, auth.HashOpaqueToken(grant.AuthCode))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.Session{}, shared.E(shared.AuthError, op, ErrInvalidToken)
	}
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	if !auth.VerifyS256Challenge(grant.CodeVerifier, code.CodeChallenge) {
		return shared.Session{}, shared.E(shared.AuthError, op, ErrInvalidVerifier)
	}

	credential, err := s.store.FindCredential(ctx, code.UserID)
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, ErrInvalidToken)
	}

	return s.issueSession(ctx, op, credential)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (s *Service) issueSession(ctx context.Context, op string, credential *models.Credential) (shared.Session, error) {
	refreshToken, err := auth.NewOpaqueToken()
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	session := models.Session{
		UserID:           credential.ID,
		RefreshTokenHash: auth.HashOpaqueToken(refreshToken),
		ExpiresAt:        s.now().Add(s.opts.SessionTTL),
	}
	if err := s.store.CreateSession(ctx, &session); err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	return s.tokenPair(op, credential, session.ID, refreshToken)
}

func (s *Service) tokenPair(op string, credential *models.Credential, sessionID, refreshToken string) (shared.Session, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.opts.AccessTokenTTL)

	accessToken, err := auth.EncodeJWT(auth.RolodexTokenClaims{
		Name:      credential.Name,
		Email:     credential.Email,
		SessionID: sessionID,
		StandardClaims: jwt.StandardClaims{
			Subject:   credential.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}, s.keyPair)
	if err != nil {
		return shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	return shared.Session{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.opts.AccessTokenTTL.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: refreshToken,
		User:         authUser(credential),
	}, nil
}

func authUser(credential *models.Credential) shared.AuthUser {
	return shared.AuthUser{
		ID:        credential.ID,
		Email:     credential.Email,
		Name:      credential.Name,
		CreatedAt: credential.CreatedAt,
	}
}
