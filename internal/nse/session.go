// Package nse talks to the exchange website that serves live ETF quotes.
// The site only answers its JSON endpoints when the caller presents a pair
// of session cookies harvested from a prior page load, so the package is
// split into a SessionManager owning that cookie pair and a Client issuing
// the authenticated calls.
package nse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"etfwatch/internal/httpx"
)

// ErrSessionUnavailable is returned when a session credential cannot be
// obtained from the upstream site.
var ErrSessionUnavailable = errors.New("nse: session unavailable")

const (
	cookieNsit  = "nsit"
	cookieAppID = "nseappid"
)

// Credential is the cookie pair the quote endpoints require.
type Credential struct {
	Nsit       string
	AppID      string
	AcquiredAt time.Time
}

// Valid reports whether the credential exists and is still inside its window.
func (c Credential) Valid(now time.Time, window time.Duration) bool {
	if c.Nsit == "" || c.AppID == "" {
		return false
	}
	return now.Before(c.AcquiredAt.Add(window))
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	BaseURL         string
	BootstrapSymbol string
	// Validity is how long a harvested credential is trusted before a
	// refresh is forced.
	Validity time.Duration
}

// SessionManager maintains one valid credential for the upstream site and
// hands it out without per-call renegotiation. Refresh runs both on a timer
// and lazily from EnsureValid; overlapping refreshes are serialized and the
// stored credential is swapped atomically, so readers never see a partial
// pair.
type SessionManager struct {
	cfg    SessionConfig
	client *httpx.Client
	log    zerolog.Logger

	// refreshMu serializes priming requests; credMu guards the stored pair.
	refreshMu sync.Mutex
	credMu    sync.RWMutex
	cred      Credential
}

func NewSessionManager(cfg SessionConfig, hc *httpx.Client, log zerolog.Logger) *SessionManager {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.nseindia.com"
	}
	if cfg.BootstrapSymbol == "" {
		cfg.BootstrapSymbol = "NIFTYBEES"
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 30 * time.Minute
	}
	return &SessionManager{
		cfg:    cfg,
		client: hc,
		log:    log.With().Str("component", "nse_session").Logger(),
	}
}

// Current returns the held credential and whether it is currently valid.
func (m *SessionManager) Current() (Credential, bool) {
	m.credMu.RLock()
	cred := m.cred
	m.credMu.RUnlock()
	return cred, cred.Valid(time.Now(), m.cfg.Validity)
}

// EnsureValid returns the held credential, refreshing first when it is
// absent or stale. Concurrent callers trigger at most one priming request.
func (m *SessionManager) EnsureValid(ctx context.Context) (Credential, error) {
	if cred, ok := m.Current(); ok {
		return cred, nil
	}
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	// Another caller may have refreshed while we waited for the lock.
	if cred, ok := m.Current(); ok {
		return cred, nil
	}
	return m.refresh(ctx)
}

// Refresh unconditionally acquires a new credential. The background timer
// calls this before the old pair expires, so it must not short-circuit on
// a still-valid credential.
func (m *SessionManager) Refresh(ctx context.Context) (Credential, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.refresh(ctx)
}

func (m *SessionManager) refresh(ctx context.Context) (Credential, error) {
	primeURL := m.cfg.BaseURL + "/get-quotes/equity?symbol=" + url.QueryEscape(m.cfg.BootstrapSymbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, primeURL, nil)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: priming request: %v", ErrSessionUnavailable, err)
	}
	defer resp.Body.Close()
	// The page body is irrelevant; only the session-scoping cookies matter.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, fmt.Errorf("%w: priming %s -> %d", ErrSessionUnavailable, primeURL, resp.StatusCode)
	}

	var cred Credential
	for _, c := range resp.Cookies() {
		switch c.Name {
		case cookieNsit:
			cred.Nsit = c.Value
		case cookieAppID:
			cred.AppID = c.Value
		}
	}
	if cred.Nsit == "" || cred.AppID == "" {
		return Credential{}, fmt.Errorf("%w: priming response missing %s/%s cookies", ErrSessionUnavailable, cookieNsit, cookieAppID)
	}
	cred.AcquiredAt = time.Now()

	m.credMu.Lock()
	m.cred = cred
	m.credMu.Unlock()

	m.log.Debug().Time("acquired_at", cred.AcquiredAt).Msg("session credential refreshed")
	return cred, nil
}

// RefreshJob adapts the manager to the scheduler's Job interface.
type RefreshJob struct {
	Manager *SessionManager
	Timeout time.Duration
}

func (j RefreshJob) Name() string { return "nse-session-refresh" }

func (j RefreshJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := j.Manager.Refresh(ctx)
	return err
}
