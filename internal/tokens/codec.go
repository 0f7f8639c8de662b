// Package tokens implements the signed token codec for the two token kinds
// the gateway issues: short-lived Authentication Tokens (AT) and
// self-contained Document Access Tokens (DAT).
//
// The codec is pure: every function takes the signing secret and the current
// time explicitly and touches no global state, which keeps encode/decode
// deterministic and trivially testable. Revocation and plugin lookups live
// in the authority package, not here.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the two token types carried in the "type" claim.
type Kind string

const (
	KindAT  Kind = "at"
	KindDAT Kind = "dat"
)

var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrNotYetValid      = errors.New("token not yet valid")
	ErrWrongKind        = errors.New("unexpected token kind")
)

// ATClaims are the claims of an Authentication Token.
// Wire form: sub, role, type=at, iat, exp, nbf.
type ATClaims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time
}

// DATClaims are the claims of a Document Access Token. A DAT is fully
// self-contained: rendering and authorizing a view needs no server-side
// lookup beyond signature and expiry checks.
// Wire form: tid, did, sub, hat, ha, hl, type=dat, iat, exp, nbf.
type DATClaims struct {
	TempDocumentID      string
	DocumentID          string
	Subject             string
	HideAnnotationTools bool
	HideAnnotations     bool
	HideLogo            bool
	IssuedAt            time.Time
	ExpiresAt           time.Time
}

// EncodeAT signs an Authentication Token. iat and nbf are pinned to now;
// the caller supplies the expiry.
func EncodeAT(c ATClaims, secret []byte, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": c.ExpiresAt.Unix(),
		"nbf": now.Unix(),

		"sub":  c.Subject,
		"role": c.Role,

		"type": string(KindAT),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// EncodeDAT signs a Document Access Token.
func EncodeDAT(c DATClaims, secret []byte, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": c.ExpiresAt.Unix(),
		"nbf": now.Unix(),

		"sub": c.Subject,
		"tid": c.TempDocumentID,
		"did": c.DocumentID,

		"hat": c.HideAnnotationTools,
		"ha":  c.HideAnnotations,
		"hl":  c.HideLogo,

		"type": string(KindDAT),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// DecodeAT verifies signature and temporal claims against the supplied
// clock and returns the AT claims. A token whose "type" claim is not "at"
// fails with ErrWrongKind.
func DecodeAT(token string, secret []byte, now time.Time) (*ATClaims, error) {
	mc, err := parse(token, secret, now)
	if err != nil {
		return nil, err
	}
	if kindOf(mc) != KindAT {
		return nil, ErrWrongKind
	}
	sub, _ := mc["sub"].(string)
	role, _ := mc["role"].(string)
	return &ATClaims{
		Subject:   sub,
		Role:      role,
		IssuedAt:  claimTime(mc, "iat"),
		ExpiresAt: claimTime(mc, "exp"),
		NotBefore: claimTime(mc, "nbf"),
	}, nil
}

// DecodeDAT verifies and returns the DAT claims.
func DecodeDAT(token string, secret []byte, now time.Time) (*DATClaims, error) {
	mc, err := parse(token, secret, now)
	if err != nil {
		return nil, err
	}
	if kindOf(mc) != KindDAT {
		return nil, ErrWrongKind
	}
	sub, _ := mc["sub"].(string)
	tid, _ := mc["tid"].(string)
	did, _ := mc["did"].(string)
	hat, _ := mc["hat"].(bool)
	ha, _ := mc["ha"].(bool)
	hl, _ := mc["hl"].(bool)
	return &DATClaims{
		TempDocumentID:      tid,
		DocumentID:          did,
		Subject:             sub,
		HideAnnotationTools: hat,
		HideAnnotations:     ha,
		HideLogo:            hl,
		IssuedAt:            claimTime(mc, "iat"),
		ExpiresAt:           claimTime(mc, "exp"),
	}, nil
}

// KindOf verifies the token and reports its kind. Fails with ErrWrongKind
// when the "type" claim is missing or unrecognized.
func KindOf(token string, secret []byte, now time.Time) (Kind, error) {
	mc, err := parse(token, secret, now)
	if err != nil {
		return "", err
	}
	k := kindOf(mc)
	if k == "" {
		return "", ErrWrongKind
	}
	return k, nil
}

// Expiry returns the exp claim without verifying the signature. Suitable
// only for computing revocation-entry lifetimes, never for authorization.
func Expiry(token string) (time.Time, error) {
	mc := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, mc)
	if err != nil {
		return time.Time{}, ErrMalformed
	}
	exp := claimTime(mc, "exp")
	if exp.IsZero() {
		return time.Time{}, fmt.Errorf("%w: exp claim missing", ErrMalformed)
	}
	return exp, nil
}

func parse(token string, secret []byte, now time.Time) (jwt.MapClaims, error) {
	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, mc,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	// a signed token without exp would never expire; refuse it outright
	exp := claimTime(mc, "exp")
	if exp.IsZero() {
		return nil, fmt.Errorf("%w: exp claim missing", ErrMalformed)
	}
	// jwt treats exp == now as still valid at sub-second granularity;
	// the gateway contract is strictly now < exp.
	if !now.Before(exp) {
		return nil, ErrExpired
	}
	return mc, nil
}

// mapJWTError flattens the library's joined errors onto the codec's stable
// error set so callers can branch with errors.Is.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}

func kindOf(mc jwt.MapClaims) Kind {
	s, _ := mc["type"].(string)
	switch Kind(s) {
	case KindAT:
		return KindAT
	case KindDAT:
		return KindDAT
	}
	return ""
}

// claimTime reads a numeric-date claim. JSON numbers decode as float64.
func claimTime(mc jwt.MapClaims, key string) time.Time {
	switch v := mc[key].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case jwt.NumericDate:
		return v.Time.UTC()
	}
	return time.Time{}
}
