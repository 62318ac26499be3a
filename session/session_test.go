package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"bomsabor-web/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(ttl time.Duration) *Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Session{
		ID:        uuid.NewString(),
		Token:     "tok-1",
		User:      models.User{ID: "3", Name: "Ana", Email: "admin@bomsabor.com"},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// storeContract runs the same checks against every Store.
func storeContract(t *testing.T, st Store) {
	ctx := context.Background()

	_, err := st.Load(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	s := sampleSession(time.Hour)
	require.NoError(t, st.Save(ctx, s))
	got, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, s.User, got.User)
	assert.True(t, got.Authenticated())

	s.Token = "tok-2"
	require.NoError(t, st.Save(ctx, s))
	got, err = st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Token)

	require.NoError(t, st.Delete(ctx, s.ID))
	_, err = st.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreExpires(t *testing.T) {
	st := NewMemoryStore()
	s := sampleSession(time.Minute)
	require.NoError(t, st.Save(context.Background(), s))

	st.now = func() time.Time { return s.ExpiresAt.Add(time.Second) }
	_, err := st.Load(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Integration tests (require a database). Skip without TEST_DATABASE_URL or in -short.
func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping postgres integration test: TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS web_sessions (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL DEFAULT '',
			user_json JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL
		)`)
	require.NoError(t, err)

	st := NewPostgresStore(pool)
	storeContract(t, st)

	old := sampleSession(-time.Minute)
	require.NoError(t, st.Save(ctx, old))
	_, err = st.Load(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := st.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestRedisStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("skipping redis integration test: TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("TEST_REDIS_PASSWORD")})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	storeContract(t, NewRedisStore(client))
}

func newTestManager() (*Manager, *MemoryStore) {
	st := NewMemoryStore()
	return NewManager(st, "sid", false, time.Hour, zerolog.Nop()), st
}

func TestMiddlewareAssignsBrowserID(t *testing.T) {
	m, _ := newTestManager()
	var seen *Session
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.False(t, seen.Authenticated())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, seen.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	prev := seen.ID
	h.ServeHTTP(rec, req)
	assert.Equal(t, prev, seen.ID)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginRotatesIDAndLogoutForgets(t *testing.T) {
	m, st := newTestManager()
	ctx := context.Background()
	anon := &Session{ID: uuid.NewString()}

	rec := httptest.NewRecorder()
	s, err := m.Login(ctx, rec, anon, "tok-9", models.User{Name: "Ana"})
	require.NoError(t, err)
	assert.NotEqual(t, anon.ID, s.ID)
	assert.Equal(t, s.ID, rec.Result().Cookies()[0].Value)

	loaded, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-9", loaded.Token)

	require.NoError(t, m.Logout(ctx, s))
	assert.False(t, s.Authenticated())
	_, err = st.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
