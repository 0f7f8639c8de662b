// Package authority is the stateful token service: it issues
// Authentication Tokens after delegating credential checks to the
// configured authentication plugin, mints Document Access Tokens bound to
// one document and one user, validates both kinds, and maintains the
// revocation set that makes logout work despite tokens being stateless.
package authority

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/internal/tokens"
	"github.com/openmark/openmark/pkg/logger"
	"github.com/openmark/openmark/pkg/metrics"
)

var (
	// ErrInvalidCredentials covers every credential failure; unknown user
	// and wrong secret are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated means the presented AT is missing, malformed,
	// expired or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrRevoked marks a token that was explicitly invalidated.
	ErrRevoked = errors.New("token revoked")

	// ErrBackendUnavailable marks a plugin or revocation-store call that
	// timed out or failed. Validation fails closed on it.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ViewOptions are the presentation flags embedded in a DAT.
type ViewOptions struct {
	HideAnnotationTools bool `json:"hideAnnotationTools"`
	HideAnnotations     bool `json:"hideAnnotations"`
	HideLogo            bool `json:"hideLogo"`
}

// Normalize enforces the minting invariant: hidden annotations imply hidden
// annotation tools. Applied server-side, unconditionally.
func (v ViewOptions) Normalize() ViewOptions {
	if v.HideAnnotations {
		v.HideAnnotationTools = true
	}
	return v
}

const (
	// datFloor is the minimum DAT lifetime regardless of cache settings.
	datFloor = 2 * time.Hour
	// datCacheFactor scales the cache duration into the DAT lifetime.
	datCacheFactor = 4
)

// DocumentTokenTTL derives the DAT lifetime from the cache duration:
// max(2h, 4 × cacheDuration). Not independently configurable.
func DocumentTokenTTL(cacheDuration time.Duration) time.Duration {
	if ttl := datCacheFactor * cacheDuration; ttl > datFloor {
		return ttl
	}
	return datFloor
}

// Options configure an Authority.
type Options struct {
	Secret        []byte
	AuthTokenTTL  time.Duration // AT lifetime, default 24h
	CacheDuration time.Duration // drives the DAT lifetime
	CallTimeout   time.Duration // bound on every plugin/store call, default 10s
}

// Authority issues, validates and revokes tokens. Safe for concurrent use;
// the only shared mutable state is the injected revocation store.
type Authority struct {
	secret      []byte
	auth        plugin.Authenticator
	revocations RevocationStore
	atTTL       time.Duration
	datTTL      time.Duration
	callTimeout time.Duration

	now func() time.Time

	stop chan struct{}
	done chan struct{}
}

func New(auth plugin.Authenticator, revocations RevocationStore, opts Options) *Authority {
	atTTL := opts.AuthTokenTTL
	if atTTL <= 0 {
		atTTL = 24 * time.Hour
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Authority{
		secret:      opts.Secret,
		auth:        auth,
		revocations: revocations,
		atTTL:       atTTL,
		datTTL:      DocumentTokenTTL(opts.CacheDuration),
		callTimeout: callTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials through the authentication plugin and mints an
// AT. The plugin call is bounded by the configured timeout and happens
// outside any lock.
func (a *Authority) Login(ctx context.Context, username, secret string) (string, *tokens.ATClaims, error) {
	cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	p, err := a.auth.Authenticate(cctx, username, secret)
	if err != nil {
		if errors.Is(err, plugin.ErrAuthFailed) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("%w: authentication backend: %v", ErrBackendUnavailable, err)
	}

	now := a.now()
	claims := tokens.ATClaims{
		Subject:   p.Username,
		Role:      string(p.Role),
		IssuedAt:  now,
		ExpiresAt: now.Add(a.atTTL),
		NotBefore: now,
	}
	tok, err := tokens.EncodeAT(claims, a.secret, now)
	if err != nil {
		return "", nil, fmt.Errorf("encoding auth token: %w", err)
	}
	metrics.TokensIssued.WithLabelValues(string(tokens.KindAT)).Inc()
	logger.Debugf("issued AT for %q (role=%s)", p.Username, p.Role)
	return tok, &claims, nil
}

// RequestDocumentAccess validates the presented AT and mints a DAT for the
// given document with a freshly generated opaque temp document id and
// normalized view options.
func (a *Authority) RequestDocumentAccess(ctx context.Context, at, documentID string, opts ViewOptions) (string, *tokens.DATClaims, error) {
	atClaims, err := a.ValidateAT(ctx, at)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	opts = opts.Normalize()
	now := a.now()
	claims := tokens.DATClaims{
		TempDocumentID:      newTempDocumentID(),
		DocumentID:          documentID,
		Subject:             atClaims.Subject,
		HideAnnotationTools: opts.HideAnnotationTools,
		HideAnnotations:     opts.HideAnnotations,
		HideLogo:            opts.HideLogo,
		IssuedAt:            now,
		ExpiresAt:           now.Add(a.datTTL),
	}
	tok, err := tokens.EncodeDAT(claims, a.secret, now)
	if err != nil {
		return "", nil, fmt.Errorf("encoding document token: %w", err)
	}
	metrics.TokensIssued.WithLabelValues(string(tokens.KindDAT)).Inc()
	return tok, &claims, nil
}

// QuickView combines Login and RequestDocumentAccess in one call, for
// external-server integrations that hand a viewer URL to a browser. The
// validation applied is identical to the two-step path.
func (a *Authority) QuickView(ctx context.Context, username, secret, documentID string, opts ViewOptions) (string, *tokens.DATClaims, error) {
	at, _, err := a.Login(ctx, username, secret)
	if err != nil {
		return "", nil, err
	}
	return a.RequestDocumentAccess(ctx, at, documentID, opts)
}

// ValidateAT decodes and verifies an AT, then consults the revocation set.
// A store failure fails closed: the token is reported unavailable, never
// silently treated as valid.
func (a *Authority) ValidateAT(ctx context.Context, token string) (*tokens.ATClaims, error) {
	claims, err := tokens.DecodeAT(token, a.secret, a.now())
	if err != nil {
		metrics.TokenValidationFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	revoked, err := a.revocations.Contains(cctx, TokenHash(token))
	if err != nil {
		metrics.TokenValidationFailures.WithLabelValues("backend").Inc()
		return nil, fmt.Errorf("%w: revocation store: %v", ErrBackendUnavailable, err)
	}
	if revoked {
		metrics.TokenValidationFailures.WithLabelValues("revoked").Inc()
		return nil, ErrRevoked
	}
	return claims, nil
}

// ValidateDAT decodes and verifies a DAT. DATs are not individually
// revocable, so no revocation lookup happens here; they die only by expiry.
func (a *Authority) ValidateDAT(ctx context.Context, token string) (*tokens.DATClaims, error) {
	claims, err := tokens.DecodeDAT(token, a.secret, a.now())
	if err != nil {
		metrics.TokenValidationFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	return claims, nil
}

// Invalidate revokes an AT (logout). The revocation entry inherits the
// token's own expiry. Invalidating an expired token is a no-op success;
// re-invalidating a revoked token is idempotent.
func (a *Authority) Invalidate(ctx context.Context, token string) error {
	claims, err := tokens.DecodeAT(token, a.secret, a.now())
	if err != nil {
		if errors.Is(err, tokens.ErrExpired) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	if err := a.revocations.Add(cctx, TokenHash(token), claims.ExpiresAt); err != nil {
		return fmt.Errorf("%w: revocation store: %v", ErrBackendUnavailable, err)
	}
	metrics.TokensRevoked.Inc()
	logger.Debugf("revoked AT for %q", claims.Subject)
	return nil
}

// PruneExpiredRevocations removes revocation entries whose expiry passed.
// Safe to run concurrently with ValidateAT and Invalidate.
func (a *Authority) PruneExpiredRevocations(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	return a.revocations.Prune(cctx, a.now())
}

// StartPruning launches the background prune loop.
func (a *Authority) StartPruning(interval time.Duration) {
	if a.stop != nil {
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := a.PruneExpiredRevocations(context.Background()); err != nil {
					logger.Warnf("revocation prune failed: %v", err)
				}
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop terminates the prune loop and waits for it to exit.
func (a *Authority) Stop() {
	if a.stop == nil {
		return
	}
	close(a.stop)
	<-a.done
	a.stop = nil
}

// TokenHash is the stable revocation key for a token: hex SHA-256 of its
// serialized form. Tokens are never stored verbatim.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newTempDocumentID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the process is in no state to mint tokens
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return "temp_" + hex.EncodeToString(b)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, tokens.ErrExpired):
		return "expired"
	case errors.Is(err, tokens.ErrInvalidSignature):
		return "signature"
	case errors.Is(err, tokens.ErrWrongKind):
		return "wrong_kind"
	case errors.Is(err, tokens.ErrNotYetValid):
		return "not_yet_valid"
	default:
		return "malformed"
	}
}
