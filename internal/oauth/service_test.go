package oauth

import (
	"context"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"redish/server/internal/apperr"
	"redish/server/internal/model"
	"redish/server/internal/store"
	"redish/server/internal/store/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc    *Service
	store  *memory.Store
	clock  *fakeClock
	client model.OAuthClient
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := memory.NewStore()
	clock := &fakeClock{t: time.Now()}
	svc := NewService(st, st, st, "https://web.example/", log, WithClock(clock.Now))

	client, err := svc.RegisterClient(context.Background(), "Reader", "https://reader.example/callback")
	require.NoError(t, err)

	return testEnv{svc: svc, store: st, clock: clock, client: client}
}

func (e testEnv) grant(t *testing.T, userID string) Grant {
	t.Helper()
	g, err := e.svc.CreateAuthorization(context.Background(), userID, e.client.ID, true, "xyz")
	require.NoError(t, err)
	return g
}

func TestRegisterClient(t *testing.T) {
	env := newTestEnv(t)

	assert.True(t, model.IsUUID(env.client.ID))
	assert.Regexp(t, urlSafe, env.client.Secret)

	_, err := env.svc.RegisterClient(context.Background(), " ", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = env.svc.RegisterClient(context.Background(), "Bad", "/relative")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.svc.GetClient(ctx, env.client.ID)
	require.NoError(t, err)
	assert.Equal(t, Client{ID: env.client.ID, Name: "Reader", Redirect: "https://reader.example/callback"}, c)

	_, err = env.svc.GetClient(ctx, "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = env.svc.GetClient(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
}

func TestAuthenticateClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.AuthenticateClient(ctx, env.client.ID, env.client.Secret))

	err := env.svc.AuthenticateClient(ctx, env.client.ID, env.client.Secret+"x")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	err = env.svc.AuthenticateClient(ctx, "00000000-0000-0000-0000-000000000000", env.client.Secret)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	err = env.svc.AuthenticateClient(ctx, "nope", env.client.Secret)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStartAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.StartAuthorization(ctx, env.client.ID, "abc 123")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "web.example", u.Host)
	assert.Equal(t, "/consent", u.Path)
	assert.Equal(t, env.client.ID, u.Query().Get("clientId"))
	assert.Equal(t, "abc 123", u.Query().Get("state"))

	u, err = env.svc.StartAuthorization(ctx, env.client.ID, "")
	require.NoError(t, err)
	_, hasState := u.Query()["state"]
	assert.False(t, hasState)

	_, err = env.svc.StartAuthorization(ctx, "bad", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = env.svc.StartAuthorization(ctx, "00000000-0000-0000-0000-000000000000", "")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
}

func TestCreateAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g := env.grant(t, "user-1")
	assert.Regexp(t, urlSafe, g.Code)
	assert.Equal(t, "xyz", g.State)
	assert.WithinDuration(t, env.clock.Now().Add(CodeTTL), g.ExpiresAt, time.Second)

	stored, err := env.store.GetAuthorizationByCode(ctx, g.Code)
	require.NoError(t, err)
	assert.False(t, stored.Used)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, env.client.ID, stored.ClientID)

	other := env.grant(t, "user-1")
	assert.NotEqual(t, g.Code, other.Code)
}

func TestCreateAuthorization_CodesAreUnique(t *testing.T) {
	env := newTestEnv(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		g := env.grant(t, "user-1")
		require.False(t, seen[g.Code])
		seen[g.Code] = true
	}
}

type countingAuths struct {
	store.AuthorizationStore
	creates atomic.Int32
}

func (c *countingAuths) CreateAuthorization(ctx context.Context, a model.Authorization) (model.Authorization, error) {
	c.creates.Add(1)
	return c.AuthorizationStore.CreateAuthorization(ctx, a)
}

func TestCreateAuthorization_ConsentDenied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auths := &countingAuths{AuthorizationStore: env.store}
	svc := NewService(env.store, auths, env.store, "https://web.example", nil)

	tests := []struct {
		name    string
		consent any
	}{
		{"false", false},
		{"nil", nil},
		{"string yes", "yes"},
		{"string true", "true"},
		{"number", float64(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAuthorization(ctx, "user-1", env.client.ID, tt.consent, "")
			assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
		})
	}
	assert.Equal(t, int32(0), auths.creates.Load())

	_, err := svc.CreateAuthorization(ctx, "user-1", env.client.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), auths.creates.Load())
}

func TestCreateAuthorization_UnknownClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateAuthorization(ctx, "user-1", "00000000-0000-0000-0000-000000000000", true, "")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	_, err = env.svc.CreateAuthorization(ctx, "user-1", "bogus", true, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.grant(t, "user-1")

	tok, err := env.svc.CreateToken(ctx, g.Code, env.client.ID, env.client.Secret)
	require.NoError(t, err)
	assert.Regexp(t, urlSafe, tok.AccessToken)
	assert.True(t, tok.ExpiresAt.After(env.clock.Now().Add(99*365*24*time.Hour)))

	stored, err := env.store.GetAuthorizationByCode(ctx, g.Code)
	require.NoError(t, err)
	assert.True(t, stored.Used)

	_, err = env.svc.CreateToken(ctx, g.Code, env.client.ID, env.client.Secret)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
}

func TestCreateToken_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other, err := env.svc.RegisterClient(ctx, "Other", "")
	require.NoError(t, err)

	g := env.grant(t, "user-1")

	_, err = env.svc.CreateToken(ctx, g.Code, env.client.ID, "wrong")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	_, err = env.svc.CreateToken(ctx, g.Code, other.ID, other.Secret)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	_, err = env.svc.CreateToken(ctx, "unknown-code", env.client.ID, env.client.Secret)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	_, err = env.svc.CreateToken(ctx, g.Code, "bogus", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// None of the failures consumed the code.
	_, err = env.svc.CreateToken(ctx, g.Code, env.client.ID, env.client.Secret)
	require.NoError(t, err)
}

func TestCreateToken_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.grant(t, "user-1")

	env.clock.Advance(CodeTTL + time.Second)

	_, err := env.svc.CreateToken(ctx, g.Code, env.client.ID, env.client.Secret)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	stored, err := env.store.GetAuthorizationByCode(ctx, g.Code)
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

func TestCreateToken_ConcurrentRedemption(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.grant(t, "user-1")

	var wins, denials atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 10; i++ {
		eg.Go(func() error {
			_, err := env.svc.CreateToken(ctx, g.Code, env.client.ID, env.client.Secret)
			switch {
			case err == nil:
				wins.Add(1)
			case apperr.Is(err, apperr.KindAccessDenied):
				denials.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), denials.Load())
}

func TestRevokeToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.grant(t, "user-1")

	tok, err := env.svc.CreateToken(ctx, g.Code, env.client.ID, env.client.Secret)
	require.NoError(t, err)

	require.NoError(t, env.svc.RevokeToken(ctx, tok.AccessToken))

	err = env.svc.RevokeToken(ctx, tok.AccessToken)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	err = env.svc.RevokeToken(ctx, "never-issued")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
}
