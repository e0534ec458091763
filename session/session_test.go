package session

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authAPIStub is an in-memory auth server. Tokens are "access-N"/"refresh-N".
type authAPIStub struct {
	mu sync.Mutex

	issued       int
	refreshCalls int
	deleted      []string
	signedOut    []string
	challenges   map[string]string

	profileErr error
	deleteErr  error
	signOutErr error
	refreshErr error
	expiresIn  int64
}

func newAuthAPIStub() *authAPIStub {
	return &authAPIStub{challenges: map[string]string{}, expiresIn: 3600}
}

func (a *authAPIStub) session() shared.Session {
	a.issued++
	return shared.Session{
		AccessToken:  fmt.Sprintf("access-%d", a.issued),
		RefreshToken: fmt.Sprintf("refresh-%d", a.issued),
		TokenType:    "bearer",
		ExpiresIn:    a.expiresIn,
		ExpiresAt:    time.Now().Unix() + a.expiresIn,
		User:         shared.AuthUser{ID: "u1", Email: "ada@example.com", Name: "Ada"},
	}
}

func (a *authAPIStub) SignUp(ctx context.Context, data shared.SignUpRequest) (shared.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if data.Email == "taken@example.com" {
		return shared.Session{}, shared.E(shared.AuthError, "client.SignUp", errors.New("user already registered"))
	}
	return a.session(), nil
}

func (a *authAPIStub) SignInWithPassword(ctx context.Context, grant shared.PasswordGrant) (shared.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if grant.Password != "analytical-engine" {
		return shared.Session{}, shared.E(shared.AuthError, "client.SignInWithPassword", shared.ErrInvalidCredentials)
	}
	return a.session(), nil
}

func (a *authAPIStub) Refresh(ctx context.Context, refreshToken string) (shared.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshCalls++
	if a.refreshErr != nil {
		return shared.Session{}, a.refreshErr
	}
	a.expiresIn = 3600
	return a.session(), nil
}

func (a *authAPIStub) ExchangeCode(ctx context.Context, grant shared.PKCEGrant) (shared.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.challenges[grant.AuthCode] != CodeChallenge(grant.CodeVerifier) {
		return shared.Session{}, shared.E(shared.AuthError, "client.ExchangeCode", errors.New("code verifier does not match"))
	}
	delete(a.challenges, grant.AuthCode)
	return a.session(), nil
}

func (a *authAPIStub) SignOut(ctx context.Context, accessToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signedOut = append(a.signedOut, accessToken)
	return a.signOutErr
}

func (a *authAPIStub) GetUser(ctx context.Context, accessToken string) (shared.AuthUser, error) {
	return shared.AuthUser{ID: "u1", Email: "ada@example.com", Name: "Ada"}, nil
}

func (a *authAPIStub) DeleteUser(ctx context.Context, accessToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, accessToken)
	return a.deleteErr
}

func (a *authAPIStub) Authorize(ctx context.Context, accessToken, codeChallenge string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	code := fmt.Sprintf("code-%d", len(a.challenges)+1)
	a.challenges[code] = codeChallenge
	return code, nil
}

func (a *authAPIStub) CreateProfile(ctx context.Context, accessToken string, user schema.User) (schema.User, error) {
	if a.profileErr != nil {
		return schema.User{}, a.profileErr
	}
	user.CreatedAt = time.Now()
	return user, nil
}

func defaultOptions() Options {
	return Options{AutoRefreshToken: true, PersistSession: true, DetectSessionInURL: true, FlowType: FlowPKCE}
}

func TestRegister(t *testing.T) {
	api := newAuthAPIStub()
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)

	user, session, err := manager.Register(context.Background(), "ada@example.com", "analytical-engine", "Ada")

	assert.Nil(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, Authenticated, manager.State())
	assert.Equal(t, "u1", manager.CurrentUser().ID)
}

func TestRegisterRollsBackWhenProfileFails(t *testing.T) {
	api := newAuthAPIStub()
	api.profileErr = shared.E(shared.GatewayError, "client.CreateProfile", errors.New("insert failed"))
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)

	_, _, err := manager.Register(context.Background(), "ada@example.com", "analytical-engine", "Ada")

	assert.NotNil(t, err)
	assert.True(t, errors.Is(err, api.profileErr), "The profile error should be kept")
	assert.Equal(t, []string{"access-1"}, api.deleted, "The new credential should be deleted")
	assert.Equal(t, Anonymous, manager.State())
	assert.Nil(t, manager.CurrentUser())
}

func TestRegisterReportsFailedRollback(t *testing.T) {
	api := newAuthAPIStub()
	api.profileErr = errors.New("insert failed")
	api.deleteErr = errors.New("connection refused")
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)

	_, _, err := manager.Register(context.Background(), "ada@example.com", "analytical-engine", "Ada")

	assert.Contains(t, err.Error(), "insert failed")
	assert.Contains(t, err.Error(), "rollback of the new account also failed: connection refused")
}

func TestRegisterWithTakenEmail(t *testing.T) {
	api := newAuthAPIStub()
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)

	_, _, err := manager.Register(context.Background(), "taken@example.com", "analytical-engine", "Ada")

	assert.True(t, shared.IsKind(err, shared.AuthError))
	assert.Empty(t, api.deleted, "Nothing was created so nothing is rolled back")
	assert.Equal(t, Anonymous, manager.State())
}

func TestLoginAndLogout(t *testing.T) {
	api := newAuthAPIStub()
	store := &MemoryStore{}
	manager := NewManager(api, store, defaultOptions(), nil)

	_, _, err := manager.Login(context.Background(), "ada@example.com", "wrong")
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))
	assert.Equal(t, Anonymous, manager.State())

	user, _, err := manager.Login(context.Background(), "ada@example.com", "analytical-engine")
	assert.Nil(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	persisted, _ := store.Load()
	assert.Equal(t, "access-1", persisted.Session.AccessToken)

	assert.Nil(t, manager.Logout(context.Background()))
	assert.Equal(t, []string{"access-1"}, api.signedOut)
	assert.Equal(t, Anonymous, manager.State())

	persisted, _ = store.Load()
	assert.Nil(t, persisted.Session)
}

func TestFailedLoginDropsPreviousSession(t *testing.T) {
	api := newAuthAPIStub()
	store := &MemoryStore{}
	manager := NewManager(api, store, defaultOptions(), nil)

	_, _, err := manager.Login(context.Background(), "ada@example.com", "analytical-engine")
	require.Nil(t, err)

	_, _, err = manager.Login(context.Background(), "ada@example.com", "wrong")
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))

	assert.Equal(t, Anonymous, manager.State())
	assert.Nil(t, manager.CurrentUser())

	_, err = manager.AccessToken(context.Background())
	assert.True(t, shared.IsKind(err, shared.AuthError), "No token should be handed out")

	persisted, _ := store.Load()
	assert.Nil(t, persisted.Session, "The old session should not be restored later")
}

func TestLogoutClearsLocalStateWhenServerFails(t *testing.T) {
	api := newAuthAPIStub()
	api.signOutErr = errors.New("connection refused")
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)
	manager.Login(context.Background(), "ada@example.com", "analytical-engine")

	err := manager.Logout(context.Background())

	assert.NotNil(t, err)
	assert.Nil(t, manager.CurrentUser())
	assert.Equal(t, Anonymous, manager.State())

	api.signOutErr = shared.E(shared.AuthError, "client.SignOut", shared.ErrSessionRevoked)
	manager.Login(context.Background(), "ada@example.com", "analytical-engine")
	assert.Nil(t, manager.Logout(context.Background()), "An already revoked session is logged out")
}

func TestAccessTokenRefreshesExpiringToken(t *testing.T) {
	api := newAuthAPIStub()
	api.expiresIn = 30
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)
	manager.Login(context.Background(), "ada@example.com", "analytical-engine")

	var wg sync.WaitGroup
	tokens := make([]string, 5)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = manager.AccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, api.refreshCalls, "Concurrent callers should share one refresh")
	for _, token := range tokens {
		assert.Equal(t, "access-2", token)
	}
}

func TestAccessTokenWithoutAutoRefresh(t *testing.T) {
	api := newAuthAPIStub()
	api.expiresIn = 30
	opts := defaultOptions()
	opts.AutoRefreshToken = false
	manager := NewManager(api, &MemoryStore{}, opts, nil)
	manager.Login(context.Background(), "ada@example.com", "analytical-engine")

	_, err := manager.AccessToken(context.Background())

	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, 0, api.refreshCalls)
}

func TestAccessTokenWhenRefreshIsRejected(t *testing.T) {
	api := newAuthAPIStub()
	api.expiresIn = 30
	api.refreshErr = shared.E(shared.AuthError, "client.Refresh", shared.ErrSessionRevoked)
	manager := NewManager(api, &MemoryStore{}, defaultOptions(), nil)
	manager.Login(context.Background(), "ada@example.com", "analytical-engine")

	_, err := manager.AccessToken(context.Background())

	assert.True(t, errors.Is(err, shared.ErrSessionRevoked))
	assert.Equal(t, Anonymous, manager.State(), "A rejected refresh signs the user out")

	_, err = manager.AccessToken(context.Background())
	assert.True(t, errors.Is(err, ErrNotSignedIn))
}

func TestRestore(t *testing.T) {
	api := newAuthAPIStub()
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	first := NewManager(api, store, defaultOptions(), nil)
	first.Login(context.Background(), "ada@example.com", "analytical-engine")

	second := NewManager(api, store, defaultOptions(), nil)
	assert.Nil(t, second.Restore(context.Background()))
	assert.Equal(t, Authenticated, second.State())
	assert.Equal(t, "ada@example.com", second.CurrentUser().Email)

	token, err := second.AccessToken(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "access-1", token)
}

func TestRestoreDropsExpiredSession(t *testing.T) {
	api := newAuthAPIStub()
	store := &MemoryStore{}
	store.Save(Persisted{Session: &shared.Session{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Hour).Unix()}})

	opts := defaultOptions()
	opts.AutoRefreshToken = false
	manager := NewManager(api, store, opts, nil)

	assert.Nil(t, manager.Restore(context.Background()))
	assert.Equal(t, Anonymous, manager.State())

	persisted, _ := store.Load()
	assert.Nil(t, persisted.Session)
}

func TestSessionIsNotPersistedWhenDisabled(t *testing.T) {
	api := newAuthAPIStub()
	path := filepath.Join(t.TempDir(), "session.json")
	opts := defaultOptions()
	opts.PersistSession = false

	manager := NewManager(api, NewFileStore(path), opts, nil)
	manager.Login(context.Background(), "ada@example.com", "analytical-engine")

	persisted, err := NewFileStore(path).Load()
	assert.Nil(t, err)
	assert.Nil(t, persisted.Session)
}

func TestPKCELoginLink(t *testing.T) {
	api := newAuthAPIStub()
	signedIn := NewManager(api, &MemoryStore{}, defaultOptions(), nil)
	signedIn.Login(context.Background(), "ada@example.com", "analytical-engine")

	newDevice := NewManager(api, &MemoryStore{}, defaultOptions(), nil)
	challenge, err := newDevice.BeginLogin()
	require.Nil(t, err)

	link, err := signedIn.LoginLink(context.Background(), "rolodex://login", challenge)
	require.Nil(t, err)

	u, _ := url.Parse(link)
	assert.Equal(t, "code-1", u.Query().Get("code"))

	recovered, err := newDevice.RecoverFromURL(context.Background(), link)
	assert.Nil(t, err)
	assert.True(t, recovered)
	assert.Equal(t, Authenticated, newDevice.State())
	assert.Equal(t, "u1", newDevice.CurrentUser().ID)

	_, err = NewManager(api, &MemoryStore{}, defaultOptions(), nil).RecoverFromURL(context.Background(), link)
	assert.True(t, errors.Is(err, ErrNoCodeVerifier), "Only the device that began the login can use the link")
}

func TestImplicitLoginLink(t *testing.T) {
	api := newAuthAPIStub()
	opts := defaultOptions()
	opts.FlowType = FlowImplicit

	signedIn := NewManager(api, &MemoryStore{}, opts, nil)
	signedIn.Login(context.Background(), "ada@example.com", "analytical-engine")

	link, err := signedIn.LoginLink(context.Background(), "https://app.rolodex.test/callback", "")
	require.Nil(t, err)

	u, _ := url.Parse(link)
	fragment, _ := url.ParseQuery(u.Fragment)
	assert.Equal(t, "access-2", fragment.Get("access_token"))

	newDevice := NewManager(api, &MemoryStore{}, opts, nil)
	recovered, err := newDevice.RecoverFromURL(context.Background(), link)
	assert.Nil(t, err)
	assert.True(t, recovered)

	token, _ := newDevice.AccessToken(context.Background())
	assert.Equal(t, "access-2", token)
}

func TestRecoverFromURLWithoutSession(t *testing.T) {
	manager := NewManager(newAuthAPIStub(), &MemoryStore{}, defaultOptions(), nil)

	recovered, err := manager.RecoverFromURL(context.Background(), "rolodex://login?next=contacts")
	assert.Nil(t, err)
	assert.False(t, recovered)

	_, err = manager.RecoverFromURL(context.Background(), "rolodex://login?error=access_denied&error_description=Link+expired")
	assert.Equal(t, "Link expired", shared.Message(err))

	opts := defaultOptions()
	opts.DetectSessionInURL = false
	recovered, err = NewManager(newAuthAPIStub(), &MemoryStore{}, opts, nil).RecoverFromURL(context.Background(), "rolodex://login?code=code-1")
	assert.Nil(t, err)
	assert.False(t, recovered, "URLs are ignored when detection is off")
}

func TestLoginLinkRequiresSession(t *testing.T) {
	manager := NewManager(newAuthAPIStub(), &MemoryStore{}, defaultOptions(), nil)

	_, err := manager.LoginLink(context.Background(), "rolodex://login", "challenge")
	assert.True(t, errors.Is(err, ErrNotSignedIn))

	_, err = manager.LoginLink(context.Background(), "not a url", "challenge")
	assert.True(t, shared.IsKind(err, shared.ValidationError))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}

func TestCodeChallenge(t *testing.T) {
	// RFC 7636 appendix B, same vector as the server's
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}
