// Package plugin defines the three swappable capability families of the
// gateway (authentication, document source, annotation store) and the
// registry that maps configured plugin names to constructible
// implementations.
package plugin

import (
	"context"
	"errors"
	"strings"

	"github.com/openmark/openmark/internal/annotations"
)

// Family is one independently swappable capability axis.
type Family string

const (
	FamilyAuth        Family = "auth"
	FamilySource      Family = "source"
	FamilyAnnotations Family = "annotations"
)

// Role of an authenticated principal.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Principal is the immutable identity an authentication plugin produces.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// ErrAuthFailed is returned by authenticators for any credential failure.
// Implementations must not distinguish "unknown user" from "wrong secret".
var ErrAuthFailed = errors.New("authentication failed")

// ErrAbsent is returned by sources when a document does not exist.
var ErrAbsent = errors.New("document absent")

// Authenticator verifies credentials against a user store.
type Authenticator interface {
	Authenticate(ctx context.Context, username, secret string) (*Principal, error)
	Lookup(ctx context.Context, username string) (Role, error)
}

// Source retrieves PDF documents from a backing store.
type Source interface {
	Fetch(ctx context.Context, documentID string) ([]byte, error)
	Exists(ctx context.Context, documentID string) (bool, error)
}

// AnnotationStore persists annotation sets keyed by (user, documentID).
type AnnotationStore interface {
	Save(ctx context.Context, user, documentID string, set *annotations.Set) error
	Load(ctx context.Context, user, documentID string) (*annotations.Set, error)
}

// Config is the opaque per-plugin configuration blob. Typed accessors keep
// call sites short; missing or mistyped keys fall back to the default.
type Config map[string]any

func (c Config) String(key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64: // JSON numbers decode as float64
		return int(v)
	}
	return def
}

func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// NameFromType derives the registry key from an implementation's type name,
// the same way the configuration refers to it: the family suffix is
// stripped and the remainder lowercased. "LocalAuthPlugin" registers as
// "local", "MongoDBAnnotationsPlugin" as "mongodb", "S3SourcePlugin" as "s3".
func NameFromType(typeName string) string {
	for _, suffix := range []string{"AuthPlugin", "SourcePlugin", "AnnotationsPlugin", "Plugin"} {
		if strings.HasSuffix(typeName, suffix) {
			typeName = strings.TrimSuffix(typeName, suffix)
			break
		}
	}
	return strings.ToLower(typeName)
}
