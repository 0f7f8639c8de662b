// Package auth holds the built-in authentication plugins. Every
// implementation maps credential failures to plugin.ErrAuthFailed without
// distinguishing unknown users from wrong passwords.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/pkg/logger"
)

// User is one record in the local users file.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
}

// UsersFile is the on-disk shape of the local user store.
type UsersFile struct {
	Users []User `json:"users"`
}

// LocalAuthPlugin authenticates against a JSON users file. It registers as
// "local" and is the zero-dependency default for single-node deployments.
type LocalAuthPlugin struct {
	path string

	mu    sync.RWMutex
	users map[string]User
}

// LocalDescriptor registers the plugin under its derived name.
var LocalDescriptor = plugin.Descriptor{
	Family: plugin.FamilyAuth,
	Name:   plugin.NameFromType("LocalAuthPlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		return NewLocalAuthPlugin(cfg.String("users_file", "./data/users.json"))
	},
}

// NewLocalAuthPlugin loads the users file, bootstrapping a default one with
// an admin and a regular user when it does not exist yet.
func NewLocalAuthPlugin(path string) (*LocalAuthPlugin, error) {
	p := &LocalAuthPlugin{path: path}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LocalAuthPlugin) reload() error {
	uf, err := LoadUsersFile(p.path)
	if os.IsNotExist(err) {
		uf = defaultUsers()
		if err := SaveUsersFile(p.path, uf); err != nil {
			return fmt.Errorf("bootstrapping users file: %w", err)
		}
		logger.Warnf("created default users file at %s; change the default passwords", p.path)
	} else if err != nil {
		return err
	}

	users := make(map[string]User, len(uf.Users))
	for _, u := range uf.Users {
		users[u.Username] = u
	}
	p.mu.Lock()
	p.users = users
	p.mu.Unlock()
	return nil
}

func (p *LocalAuthPlugin) Authenticate(ctx context.Context, username, password string) (*plugin.Principal, error) {
	p.mu.RLock()
	u, ok := p.users[username]
	p.mu.RUnlock()
	if !ok {
		return nil, plugin.ErrAuthFailed
	}
	if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(HashPassword(password))) != 1 {
		return nil, plugin.ErrAuthFailed
	}
	return &plugin.Principal{Username: u.Username, Role: roleOrUser(u.Role)}, nil
}

func (p *LocalAuthPlugin) Lookup(ctx context.Context, username string) (plugin.Role, error) {
	p.mu.RLock()
	u, ok := p.users[username]
	p.mu.RUnlock()
	if !ok {
		return "", plugin.ErrAuthFailed
	}
	return roleOrUser(u.Role), nil
}

func roleOrUser(role string) plugin.Role {
	if role == string(plugin.RoleAdmin) {
		return plugin.RoleAdmin
	}
	return plugin.RoleUser
}

// HashPassword returns the hex SHA-256 digest used by the local user store.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// LoadUsersFile reads and parses a users file. The error from os.ReadFile
// is passed through so callers can detect a missing file.
func LoadUsersFile(path string) (*UsersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var uf UsersFile
	if err := json.Unmarshal(data, &uf); err != nil {
		return nil, fmt.Errorf("parsing users file %s: %w", path, err)
	}
	return &uf, nil
}

// SaveUsersFile writes the users file atomically (write to a temp file in
// the same directory, then rename).
func SaveUsersFile(path string, uf *UsersFile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(uf, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".users-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func defaultUsers() *UsersFile {
	return &UsersFile{Users: []User{
		{Username: "admin", PasswordHash: HashPassword("admin123"), Role: "admin"},
		{Username: "user", PasswordHash: HashPassword("user123"), Role: "user"},
	}}
}
