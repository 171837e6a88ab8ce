package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/auth"
	"github.com/dmitrijs2005/gophstore/internal/server/notify"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/repomanager"
)

var errBoom = errors.New("boom")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureNotifier struct {
	mu      sync.Mutex
	notices []notify.ResetNotice
	err     error
}

func (n *captureNotifier) NotifyPasswordReset(_ context.Context, notice notify.ResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *captureNotifier) last(t *testing.T) notify.ResetNotice {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		t.Fatalf("no reset notice captured")
	}
	return n.notices[len(n.notices)-1]
}

// failingTx breaks every transaction of an otherwise working manager.
type failingTx struct {
	repomanager.RepositoryManager
}

func (failingTx) WithTx(context.Context, dbx.TxFunc) error { return errBoom }

func newObservedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewZapLogger(zap.New(core)), logs
}

type fixture struct {
	clock    *testClock
	store    *memory.Store
	repos    repomanager.RepositoryManager
	signer   *auth.Signer
	refresh  *RefreshLedger
	reset    *ResetLedger
	notifier *captureNotifier
	svc      *SessionService
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, logs := newObservedLogger()
	clock := newTestClock()

	store := memory.NewStore()
	store.SetClock(clock.Now)
	repos := repomanager.NewInMemoryRepositoryManager(store)

	signer := auth.NewSigner([]byte("test-secret"), auth.DefaultAccessTTL).WithClock(clock.Now)

	refresh := NewRefreshLedger(repos, DefaultRefreshTTL, log)
	refresh.now = clock.Now
	reset := NewResetLedger(repos, DefaultResetTTL, log)
	reset.now = clock.Now

	notifier := &captureNotifier{}
	svc := NewSessionService(repos, signer, NewBcryptHasher(bcrypt.MinCost), refresh, reset, notifier, log)

	return &fixture{
		clock:    clock,
		store:    store,
		repos:    repos,
		signer:   signer,
		refresh:  refresh,
		reset:    reset,
		notifier: notifier,
		svc:      svc,
		logs:     logs,
	}
}

func (f *fixture) signup(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupInput{Email: email, Password: password, FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return res
}
