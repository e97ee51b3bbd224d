// Package session holds the wallet session: whether a wallet is connected,
// which kind, and as which account. One Session exists per application and
// is passed to whatever needs it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/notify"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// Operation names reported to the Recorder.
const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpRestore    = "restore"
	OpSign       = "sign"
)

// State is a snapshot of the session.
// Connected implies Kind is set and PublicKey is non-empty.
type State struct {
	Connected bool        `json:"connected"`
	Kind      driver.Kind `json:"kind"`
	PublicKey string      `json:"public_key,omitempty"`
	LastError error       `json:"-"`
}

// Registry is the driver registry surface the session depends on.
type Registry interface {
	Open(kind driver.Kind) (driver.Driver, error)
	LastActive() (driver.Kind, error)
	Remember(kind driver.Kind) error
	Forget() error
}

// Notifier publishes user-facing notifications.
type Notifier interface {
	Notify(sev notify.Severity, message string) string
}

// Recorder counts session operations.
type Recorder interface {
	RecordWalletOp(op, kind string, err error)
}

// Logger is the logging surface the session uses.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// pendingConnect tracks an in-flight Connect so Disconnect can cancel it.
type pendingConnect struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session is the single source of truth for the wallet connection.
// All transitions are serialized; a Connect never leaves the session half-connected.
type Session struct {
	mu      sync.Mutex
	state   State
	active  driver.Driver
	pending *pendingConnect

	registry       Registry
	notifier       Notifier
	recorder       Recorder
	logger         Logger
	connectTimeout time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier publishes connect and teardown outcomes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithLogger sets the session logger.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConnectTimeout bounds each wallet handshake. Zero means no bound.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) { s.connectTimeout = d }
}

// New creates a disconnected session backed by registry.
func New(registry Registry, opts ...Option) *Session {
	s := &Session{
		registry: registry,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PublicKey returns the cached public key if connected. It never contacts the wallet.
func (s *Session) PublicKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PublicKey, s.state.Connected
}

// ConnectKind opens a driver for kind from the registry and connects with it.
func (s *Session) ConnectKind(ctx context.Context, kind driver.Kind) error {
	if s.registry == nil {
		return s.Connect(ctx, kind, nil)
	}
	drv, err := s.registry.Open(kind)
	if err != nil {
		s.fail(kind, err, true)
		return err
	}
	return s.Connect(ctx, kind, drv)
}

// Connect performs the handshake with drv and fetches its public key.
// On any failure the session is reset to disconnected with LastError set
// and the retained kind is forgotten.
// A Connect while another is in flight fails with CONNECT_IN_PROGRESS.
func (s *Session) Connect(ctx context.Context, kind driver.Kind, drv driver.Driver) error {
	if !kind.Valid() {
		_, err := driver.ParseKind(string(kind))
		s.fail(kind, err, true)
		return err
	}
	if drv == nil {
		err := anchorerr.WithDetails(anchorerr.ErrDriverUnavailable, map[string]string{"kind": kind.String()})
		s.fail(kind, err, true)
		return err
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return anchorerr.ErrConnectInProgress
	}

	cctx, cancel := context.WithCancel(ctx)
	if s.connectTimeout > 0 {
		var cancelTimeout context.CancelFunc
		cctx, cancelTimeout = context.WithTimeout(cctx, s.connectTimeout)
		defer cancelTimeout()
	}
	defer cancel()

	p := &pendingConnect{cancel: cancel, done: make(chan struct{})}
	s.pending = p
	prev := s.active
	s.active = nil
	s.state = State{}
	s.mu.Unlock()

	if prev != nil && prev != drv {
		if err := prev.Disconnect(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("tearing down previous wallet: %v", err)
		}
	}

	key, err := s.handshake(cctx, drv)

	s.mu.Lock()
	if err != nil {
		s.active = nil
		s.state = State{Kind: driver.KindNone, LastError: err}
		s.forget()
	} else {
		s.active = drv
		s.state = State{Connected: true, Kind: kind, PublicKey: key}
		if s.registry != nil {
			if rerr := s.registry.Remember(kind); rerr != nil {
				s.logger.Error("retaining active wallet: %v", rerr)
			}
		}
	}
	s.pending = nil
	close(p.done)
	s.mu.Unlock()

	s.record(OpConnect, kind, err)
	if err != nil {
		s.logger.Error("connect %s: %v", kind, err)
		s.publish(notify.SeverityError, "Failed to connect wallet: "+err.Error())
		return err
	}
	s.logger.Debug("connected %s as %s", kind, key)
	s.publish(notify.SeveritySuccess, "Connected to "+kind.DisplayName())
	return nil
}

// handshake connects drv and fetches its key, classifying failures.
// A driver whose key fetch fails is torn down best-effort.
func (s *Session) handshake(ctx context.Context, drv driver.Driver) (string, error) {
	if err := drv.Connect(ctx); err != nil {
		if errors.Is(err, anchorerr.ErrDriverUnavailable) || errors.Is(err, anchorerr.ErrHandshakeRejected) {
			return "", err
		}
		return "", anchorerr.Classify(anchorerr.ErrHandshakeRejected, err)
	}

	key, err := drv.PublicKey(ctx)
	if err == nil && key == "" {
		err = errors.New("wallet returned an empty public key")
	}
	if err != nil {
		if derr := drv.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			s.logger.Error("teardown after key fetch failure: %v", derr)
		}
		return "", anchorerr.Classify(anchorerr.ErrKeyFetchFailed, err)
	}
	return key, nil
}

// Disconnect tears down the active driver. The session always ends
// disconnected; a teardown failure is recorded and returned. A pending
// Connect is canceled and waited for first. With no active driver it is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	for s.pending != nil {
		p := s.pending
		s.mu.Unlock()
		p.cancel()
		<-p.done
		s.mu.Lock()
	}

	drv := s.active
	kind := s.state.Kind
	s.active = nil
	s.state = State{}
	s.mu.Unlock()

	if drv == nil {
		return nil
	}

	err := drv.Disconnect(ctx)
	s.forget()

	if err != nil {
		err = anchorerr.Classify(anchorerr.ErrDriverTeardownFailed, err)
		s.mu.Lock()
		if !s.state.Connected && s.pending == nil {
			s.state.LastError = err
		}
		s.mu.Unlock()
		s.logger.Error("disconnect %s: %v", kind, err)
		s.publish(notify.SeverityError, "Failed to disconnect wallet: "+err.Error())
	} else {
		s.logger.Debug("disconnected %s", kind)
	}
	s.record(OpDisconnect, kind, err)
	return err
}

// Restore reconnects silently to the retained wallet kind, if any, by fetching
// its public key without a new handshake. Failure sets LastError and leaves
// the session disconnected.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	if s.registry == nil || s.pending != nil || s.state.Connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	kind, err := s.registry.LastActive()
	if err != nil {
		s.fail(driver.KindNone, err, false)
		s.record(OpRestore, driver.KindNone, err)
		return err
	}
	if kind == driver.KindNone {
		return nil
	}

	drv, err := s.registry.Open(kind)
	if err == nil {
		var key string
		key, err = drv.PublicKey(ctx)
		if err == nil && key == "" {
			err = errors.New("wallet returned an empty public key")
		}
		if err != nil {
			err = anchorerr.Classify(anchorerr.ErrKeyFetchFailed, err)
		} else {
			s.mu.Lock()
			if s.pending == nil && !s.state.Connected {
				s.active = drv
				s.state = State{Connected: true, Kind: kind, PublicKey: key}
			}
			s.mu.Unlock()
		}
	}

	s.record(OpRestore, kind, err)
	if err != nil {
		s.logger.Debug("restore %s: %v", kind, err)
		s.fail(kind, err, false)
		return err
	}
	s.logger.Debug("restored %s", kind)
	return nil
}

// SignTransaction asks the connected wallet to sign tx.
func (s *Session) SignTransaction(ctx context.Context, tx driver.Transaction) (driver.Transaction, error) {
	s.mu.Lock()
	drv := s.active
	kind := s.state.Kind
	s.mu.Unlock()

	if drv == nil {
		return driver.Transaction{}, anchorerr.ErrNotConnected
	}

	signed, err := drv.SignTransaction(ctx, tx)
	if err != nil {
		err = anchorerr.Classify(anchorerr.ErrSigningFailed, err)
	}
	s.record(OpSign, kind, err)
	return signed, err
}

// fail resets the session to disconnected with err recorded, unless a
// connect is in flight. A previously active driver is torn down best-effort.
// With forget set the retained kind is dropped as well.
func (s *Session) fail(kind driver.Kind, err error, forget bool) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return
	}
	prev := s.active
	s.active = nil
	s.state = State{LastError: err}
	s.mu.Unlock()

	s.logger.Debug("session reset after %s failure: %v", kind, err)
	if prev != nil {
		if derr := prev.Disconnect(context.Background()); derr != nil {
			s.logger.Error("tearing down previous wallet: %v", derr)
		}
	}
	if forget {
		s.forget()
	}
}

func (s *Session) forget() {
	if s.registry == nil {
		return
	}
	if err := s.registry.Forget(); err != nil {
		s.logger.Error("forgetting active wallet: %v", err)
	}
}

func (s *Session) publish(sev notify.Severity, msg string) {
	if s.notifier != nil {
		s.notifier.Notify(sev, msg)
	}
}

func (s *Session) record(op string, kind driver.Kind, err error) {
	if s.recorder != nil {
		name := ""
		if kind != driver.KindNone {
			name = string(kind)
		}
		s.recorder.RecordWalletOp(op, name, err)
	}
}

