// Package authserver hosts the short-lived HTTPS callback server both
// login flows depend on. The page served at / takes the chat platform's
// confirmation code and posts it to /tg; the drive's OAuth redirect
// lands on /auth. Received codes are forwarded to whoever subscribed
// for the provider.
//
// The server only runs while a login is in progress: Spawn binds the
// listener and returns a handle scoped to that login, and releasing the
// handle shuts the listener down. Callers defer the release so every
// exit path stops the server.
package authserver

import (
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
)

// Provider names the event channel a received code is forwarded on.
type Provider string

const (
	// ProviderTelegram receives confirmation codes posted to /tg.
	ProviderTelegram Provider = "telegram"

	// ProviderDrive receives OAuth codes from the redirect to /auth.
	ProviderDrive Provider = "drive"
)

//go:embed login.html
var loginPage []byte

const shutdownTimeout = 5 * time.Second

// Config tunes the callback server.
type Config struct {
	// Listen is the local address the HTTPS listener binds.
	Listen string

	// CertFile and KeyFile point at a PEM pair. When the pair cannot be
	// read, a self-signed certificate for 127.0.0.1 and localhost is
	// generated instead.
	CertFile string
	KeyFile  string
}

// Server owns the code subscriptions and spawns the HTTPS listener on
// demand.
type Server struct {
	config Config

	mu            sync.Mutex
	subs          map[Provider]chan string
	active        bool
	expectedState string
}

// New creates the server. Nothing listens until Spawn.
func New(config Config) *Server {
	return &Server{
		config: config,
		subs:   make(map[Provider]chan string),
	}
}

// Subscribe opens the code channel for a provider. Callers subscribe
// before handing out the login URL and unsubscribe once the code
// arrived. Subscribing again closes the previous channel, so a stale
// waiter unblocks with a closed-channel read.
func (s *Server) Subscribe(provider Provider) <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.subs[provider]; ok {
		close(prev)
	}

	ch := make(chan string, 1)
	s.subs[provider] = ch

	return ch
}

// Unsubscribe closes and drops the provider's channel.
func (s *Server) Unsubscribe(provider Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[provider]; ok {
		close(ch)
		delete(s.subs, provider)
	}
}

// AwaitCode subscribes, waits for one code, and unsubscribes. Blocks
// until the code arrives or the context ends.
func (s *Server) AwaitCode(ctx context.Context, provider Provider) (string, error) {
	codes := s.Subscribe(provider)
	defer s.Unsubscribe(provider)

	select {
	case code, ok := <-codes:
		if !ok {
			return "", apperr.Newf(apperr.Internal, "another login replaced the %s code subscription", provider)
		}
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ExpectState arms the OAuth state check: the next drive redirect must
// echo exactly this value or the code is rejected. The drive login sets
// a fresh nonce per attempt.
func (s *Server) ExpectState(state string) {
	s.mu.Lock()
	s.expectedState = state
	s.mu.Unlock()
}

// publish forwards a received code to the provider's subscriber. Codes
// with no waiting login are dropped.
func (s *Server) publish(provider Provider, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.subs[provider]
	if !ok {
		logger.Warn("Dropping code with no waiting login", "provider", provider)
		return
	}

	select {
	case ch <- code:
	default:
		logger.Warn("Dropping duplicate code", "provider", provider)
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/tg", s.handleTelegramCode)
	r.Get("/auth", s.handleDriveCode)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(loginPage)
}

func (s *Server) handleTelegramCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		http.Error(w, `expected JSON body {"code":"..."}`, http.StatusBadRequest)
		return
	}

	s.publish(ProviderTelegram, body.Code)
	w.Write([]byte("code received"))
}

func (s *Server) handleDriveCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	expected := s.expectedState
	s.mu.Unlock()
	if expected != "" && r.URL.Query().Get("state") != expected {
		logger.Warn("Rejecting drive code with wrong state")
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}

	s.publish(ProviderDrive, code)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body>Login complete. You can close this window.</body></html>"))
}

// Handle scopes the running listener to one login operation.
type Handle struct {
	addr   string
	cancel context.CancelFunc
	done   <-chan struct{}
	once   sync.Once
}

// Addr returns the bound listen address.
func (h *Handle) Addr() string {
	return h.addr
}

// Release shuts the server down and waits for the listener to close.
// Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(h.cancel)

	select {
	case <-h.done:
	case <-time.After(shutdownTimeout):
		logger.Warn("Auth callback server did not stop in time")
	}
}

// Spawn binds the HTTPS listener and serves until the returned handle
// is released or the context ends. Only one listener runs at a time; a
// second Spawn while one is active is a sequencing bug in the caller.
func (s *Server) Spawn(ctx context.Context) (*Handle, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil, apperr.New(apperr.Internal, "auth callback server already running")
	}
	s.active = true
	s.mu.Unlock()

	cert, err := s.certificate()
	if err != nil {
		s.setActive(false)
		return nil, err
	}

	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		s.setActive(false)
		return nil, apperr.Wrapf(apperr.Transport, err, "failed to bind %s", s.config.Listen)
	}

	server := &http.Server{
		Handler:   s.router(),
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	errChan := make(chan error, 1)

	go func() {
		logger.Info("Auth callback server listening", "addr", listener.Addr().String())
		if err := server.ServeTLS(listener, "", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	go func() {
		defer close(done)

		select {
		case <-serveCtx.Done():
		case err := <-errChan:
			logger.Error("Auth callback server failed", "error", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Auth callback server shutdown error", "error", err)
		}

		s.setActive(false)
	}()

	return &Handle{
		addr:   listener.Addr().String(),
		cancel: cancel,
		done:   done,
	}, nil
}

func (s *Server) setActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}
