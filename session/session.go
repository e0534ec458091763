// Package session tracks who is signed in on this client. It wraps sign-up,
// sign-in, sign-out, token refresh, session persistence and session recovery
// from a redirect URL.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

const (
	FlowPKCE     = "pkce"
	FlowImplicit = "implicit"

	// refreshMargin is how long before expiry an access token is refreshed.
	refreshMargin = time.Minute
)

var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrSessionExpired = errors.New("session has expired, please log in again")
	ErrNoCodeVerifier = errors.New("no pending login on this device")
)

// AuthAPI is the remote side of authentication.
type AuthAPI interface {
	SignUp(ctx context.Context, data shared.SignUpRequest) (shared.Session, error)
	SignInWithPassword(ctx context.Context, grant shared.PasswordGrant) (shared.Session, error)
	Refresh(ctx context.Context, refreshToken string) (shared.Session, error)
	ExchangeCode(ctx context.Context, grant shared.PKCEGrant) (shared.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (shared.AuthUser, error)
	DeleteUser(ctx context.Context, accessToken string) error
	Authorize(ctx context.Context, accessToken, codeChallenge string) (string, error)
	CreateProfile(ctx context.Context, accessToken string, user schema.User) (schema.User, error)
}

type Options struct {
	AutoRefreshToken   bool
	PersistSession     bool
	DetectSessionInURL bool
	FlowType           string
}

func OptionsFrom(config shared.AuthConfig) Options {
	return Options{
		AutoRefreshToken:   config.AutoRefreshToken,
		PersistSession:     config.PersistSession,
		DetectSessionInURL: config.DetectSessionInURL,
		FlowType:           config.FlowType,
	}
}

// Manager is safe for concurrent use. Only one call changes the session at a
// time; AccessToken refreshes at most once for concurrent callers.
type Manager struct {
	mu      sync.Mutex
	api     AuthAPI
	store   Store
	opts    Options
	logg    *zap.SugaredLogger
	state   State
	session *shared.Session
	user    *schema.User
	now     func() time.Time
}

func NewManager(api AuthAPI, store Store, opts Options, logg *zap.SugaredLogger) *Manager {
	if store == nil || !opts.PersistSession {
		store = &MemoryStore{}
	}
	if opts.FlowType == "" {
		opts.FlowType = FlowPKCE
	}
	if logg == nil {
		logg = zap.NewNop().Sugar()
	}

	return &Manager{api: api, store: store, opts: opts, logg: logg, now: time.Now}
}

// Register creates the credential, then the linked profile row. When the
// profile cannot be created the credential is deleted again so no account is
// left without a profile.
func (m *Manager) Register(ctx context.Context, email, password, name string) (schema.User, shared.Session, error) {
	const op = "session.Register"

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = Authenticating

	session, err := m.api.SignUp(ctx, shared.SignUpRequest{Email: email, Password: password, Name: name})
	if err != nil {
		m.clear()
		return schema.User{}, shared.Session{}, authError(op, err)
	}

	profile, err := m.api.CreateProfile(ctx, session.AccessToken, schema.User{
		ID:    session.User.ID,
		Email: session.User.Email,
		Name:  session.User.Name,
	})
	if err != nil {
		m.clear()

		if deleteErr := m.api.DeleteUser(ctx, session.AccessToken); deleteErr != nil {
			m.logg.Errorf("%v: unable to delete credential %v after failed profile insert: %v", op, session.User.ID, deleteErr)
			return schema.User{}, shared.Session{}, shared.E(shared.AuthError, op,
				fmt.Errorf("%v; rollback of the new account also failed: %v", shared.Message(err), shared.Message(deleteErr)))
		}

		return schema.User{}, shared.Session{}, shared.E(shared.AuthError, op, err)
	}

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = session.User.CreatedAt
	}

	m.setSession(session, profile)
	return profile, session, nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (schema.User, shared.Session, error) {
	const op = "session.Login"

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = Authenticating

	session, err := m.api.SignInWithPassword(ctx, shared.PasswordGrant{Email: email, Password: password})
	if err != nil {
		m.clear()
		return schema.User{}, shared.Session{}, authError(op, err)
	}

	user := userFrom(session.User)
	m.setSession(session, user)
	return user, session, nil
}

// Logout revokes the session on the server and always clears local state,
// even when the server could not be reached.
func (m *Manager) Logout(ctx context.Context) error {
	const op = "session.Logout"

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.session != nil {
		err = m.api.SignOut(ctx, m.session.AccessToken)
		if errors.Is(err, shared.ErrSessionRevoked) {
			err = nil
		}
	}

	m.clear()
	return authError(op, err)
}

// CurrentUser returns the signed-in user, or nil.
func (m *Manager) CurrentUser() *schema.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return nil
	}
	user := *m.user
	return &user
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Restore reloads a persisted session. An expired session is refreshed when
// auto refresh is on and dropped otherwise.
func (m *Manager) Restore(ctx context.Context) error {
	const op = "session.Restore"

	m.mu.Lock()
	defer m.mu.Unlock()

	persisted, err := m.store.Load()
	if err != nil {
		return shared.E(shared.AuthError, op, err)
	}
	if persisted.Session == nil {
		return nil
	}

	session := *persisted.Session
	m.session = &session
	m.user = nil
	if err := m.ensureFresh(ctx, op); err != nil {
		m.clear()
		if errors.Is(err, ErrSessionExpired) {
			return nil
		}
		return err
	}

	authUser, err := m.api.GetUser(ctx, m.session.AccessToken)
	if err != nil {
		if shared.IsKind(err, shared.AuthError) {
			m.clear()
		}
		return authError(op, err)
	}

	m.session.User = authUser
	m.setSession(*m.session, userFrom(authUser))
	return nil
}

// AccessToken returns a token valid for at least the refresh margin,
// refreshing it first when auto refresh is on.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	const op = "session.AccessToken"

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return "", shared.E(shared.AuthError, op, ErrNotSignedIn)
	}

	if err := m.ensureFresh(ctx, op); err != nil {
		return "", err
	}

	return m.session.AccessToken, nil
}

// RecoverFromURL signs in from a redirect URL. With the implicit flow the
// tokens are read from the fragment; with PKCE the code in the query is
// exchanged using the verifier kept by BeginLogin. Returns false when the URL
// carries no session.
func (m *Manager) RecoverFromURL(ctx context.Context, rawURL string) (bool, error) {
	const op = "session.RecoverFromURL"

	if !m.opts.DetectSessionInURL {
		return false, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false, shared.Validationf(op, "invalid url: %v", err)
	}

	if desc := firstValue(u, "error_description", "error"); desc != "" {
		return false, shared.E(shared.AuthError, op, errors.New(desc))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var session shared.Session

	switch m.opts.FlowType {
	case FlowImplicit:
		fragment, _ := url.ParseQuery(u.Fragment)
		if fragment.Get("access_token") == "" {
			return false, nil
		}

		session = shared.Session{
			AccessToken:  fragment.Get("access_token"),
			RefreshToken: fragment.Get("refresh_token"),
			TokenType:    fragment.Get("token_type"),
		}
		session.ExpiresAt, _ = strconv.ParseInt(fragment.Get("expires_at"), 10, 64)
		session.ExpiresIn, _ = strconv.ParseInt(fragment.Get("expires_in"), 10, 64)
		if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
			session.ExpiresAt = m.now().Unix() + session.ExpiresIn
		}

	default:
		code := u.Query().Get("code")
		if code == "" {
			return false, nil
		}

		persisted, err := m.store.Load()
		if err != nil {
			return false, shared.E(shared.AuthError, op, err)
		}
		if persisted.CodeVerifier == "" {
			return false, shared.E(shared.AuthError, op, ErrNoCodeVerifier)
		}

		m.state = Authenticating
		session, err = m.api.ExchangeCode(ctx, shared.PKCEGrant{AuthCode: code, CodeVerifier: persisted.CodeVerifier})
		if err != nil {
			m.clear()
			return false, authError(op, err)
		}
	}

	authUser, err := m.api.GetUser(ctx, session.AccessToken)
	if err != nil {
		m.clear()
		return false, authError(op, err)
	}

	session.User = authUser
	m.setSession(session, userFrom(authUser))
	return true, nil
}

// BeginLogin starts a PKCE login on this device. The returned challenge is
// given to a signed-in device, which turns it into a login link with LoginLink.
func (m *Manager) BeginLogin() (string, error) {
	const op = "session.BeginLogin"

	m.mu.Lock()
	defer m.mu.Unlock()

	verifier, err := newCodeVerifier()
	if err != nil {
		return "", shared.E(shared.AuthError, op, err)
	}

	persisted, err := m.store.Load()
	if err != nil {
		return "", shared.E(shared.AuthError, op, err)
	}

	persisted.CodeVerifier = verifier
	if err := m.store.Save(persisted); err != nil {
		return "", shared.E(shared.AuthError, op, err)
	}

	return CodeChallenge(verifier), nil
}

// LoginLink builds a link that signs another device in as the current user.
// With PKCE the link carries a one-time code bound to codeChallenge; with the
// implicit flow it carries a fresh token pair in its fragment.
func (m *Manager) LoginLink(ctx context.Context, redirectURL, codeChallenge string) (string, error) {
	const op = "session.LoginLink"

	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme == "" {
		return "", shared.Validationf(op, "a valid redirect url is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return "", shared.E(shared.AuthError, op, ErrNotSignedIn)
	}
	if err := m.ensureFresh(ctx, op); err != nil {
		return "", err
	}

	if m.opts.FlowType == FlowImplicit {
		verifier, err := newCodeVerifier()
		if err != nil {
			return "", shared.E(shared.AuthError, op, err)
		}

		code, err := m.api.Authorize(ctx, m.session.AccessToken, CodeChallenge(verifier))
		if err != nil {
			return "", authError(op, err)
		}

		session, err := m.api.ExchangeCode(ctx, shared.PKCEGrant{AuthCode: code, CodeVerifier: verifier})
		if err != nil {
			return "", authError(op, err)
		}

		fragment := url.Values{}
		fragment.Set("access_token", session.AccessToken)
		fragment.Set("refresh_token", session.RefreshToken)
		fragment.Set("token_type", session.TokenType)
		fragment.Set("expires_at", strconv.FormatInt(session.ExpiresAt, 10))
		fragment.Set("expires_in", strconv.FormatInt(session.ExpiresIn, 10))
		u.Fragment = fragment.Encode()
		return u.String(), nil
	}

	if strings.TrimSpace(codeChallenge) == "" {
		return "", shared.Validationf(op, "a code challenge is required")
	}

	code, err := m.api.Authorize(ctx, m.session.AccessToken, codeChallenge)
	if err != nil {
		return "", authError(op, err)
	}

	query := u.Query()
	query.Set("code", code)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// ensureFresh refreshes the current session when it is about to expire. The
// caller holds m.mu.
func (m *Manager) ensureFresh(ctx context.Context, op string) error {
	if !m.session.Expired(m.now(), refreshMargin) {
		return nil
	}

	if !m.opts.AutoRefreshToken || m.session.RefreshToken == "" {
		return shared.E(shared.AuthError, op, ErrSessionExpired)
	}

	refreshed, err := m.api.Refresh(ctx, m.session.RefreshToken)
	if err != nil {
		if shared.IsKind(err, shared.AuthError) {
			m.clear()
		}
		return authError(op, err)
	}

	m.logg.Debugf("%v: refreshed access token", op)

	user := m.user
	if user == nil {
		u := userFrom(refreshed.User)
		user = &u
	}
	m.setSession(refreshed, *user)
	return nil
}

// setSession records a signed-in session. The caller holds m.mu.
func (m *Manager) setSession(session shared.Session, user schema.User) {
	m.session = &session
	m.user = &user
	m.state = Authenticated

	if err := m.store.Save(Persisted{Session: &session}); err != nil {
		m.logg.Warnf("unable to persist session: %v", err)
	}
}

// clear forgets the session locally. The caller holds m.mu.
func (m *Manager) clear() {
	m.session = nil
	m.user = nil
	m.state = Anonymous

	if err := m.store.Save(Persisted{}); err != nil {
		m.logg.Warnf("unable to clear persisted session: %v", err)
	}
}

func userFrom(authUser shared.AuthUser) schema.User {
	return schema.User{
		ID:        authUser.ID,
		Email:     authUser.Email,
		Name:      authUser.Name,
		CreatedAt: authUser.CreatedAt,
	}
}

// authError keeps validation errors as they are and reports everything else
// as an auth failure.
func authError(op string, err error) error {
	if err == nil {
		return nil
	}
	if shared.IsKind(err, shared.ValidationError) || shared.IsKind(err, shared.AuthError) {
		return err
	}
	return shared.E(shared.AuthError, op, err)
}

func firstValue(u *url.URL, keys ...string) string {
	fragment, _ := url.ParseQuery(u.Fragment)
	for _, key := range keys {
		if value := u.Query().Get(key); value != "" {
			return value
		}
		if value := fragment.Get(key); value != "" {
			return value
		}
	}
	return ""
}

func newCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CodeChallenge is the S256 challenge of a PKCE code verifier. It must match
// auth.S256Challenge on the server.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
