package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ditrix/ditrix-server/internal/limiter"
	"github.com/ditrix/ditrix-server/internal/mail"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository/memory"
)

const testPassword = "password1"

type sentCode struct {
	to, code string
	purpose  mail.Purpose
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

var _ mail.Sender = (*fakeMailer)(nil)

func (m *fakeMailer) SendCode(_ context.Context, to, code string, p mail.Purpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCode{to: to, code: code, purpose: p})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type env struct {
	store    *memory.Store
	creds    *CredentialStoreImpl
	sessions *SessionRegistryImpl
	verifs   *VerificationStoreImpl
	captures *CaptureServiceImpl
	auth     *AuthServiceImpl
	mailer   *fakeMailer
	clock    *fakeClock
}

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
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	users := memory.NewUserRepo(store)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}

	e := &env{
		store:    store,
		creds:    NewCredentialStore(users),
		sessions: NewSessionRegistry(memory.NewSessionRepo(store), []byte("test-key"), 24*time.Hour),
		verifs:   NewVerificationStore(memory.NewVerificationRepo(store)),
		captures: NewCaptureService(memory.NewCaptureRepo(store), users),
		mailer:   &fakeMailer{},
		clock:    clock,
	}
	e.sessions.now = clock.Now
	e.verifs.now = clock.Now
	e.auth = NewAuthService(AuthDeps{
		Credentials:   e.creds,
		Sessions:      e.sessions,
		Verifications: e.verifs,
		Limiter:       limiter.NewMemory(time.Minute, 3, time.Minute),
		Mailer:        e.mailer,
		Log:           zaptest.NewLogger(t),
		CodeTTL:       15 * time.Minute,
		MaxAttempts:   3,
	})
	e.auth.now = clock.Now
	return e
}

func (e *env) user(t *testing.T, email, name string) *model.Profile {
	t.Helper()
	p, err := e.creds.CreateUser(context.Background(), NewUser{Email: email, Password: testPassword, Name: name})
	require.NoError(t, err)
	return p
}

func strp(s string) *string { return &s }
