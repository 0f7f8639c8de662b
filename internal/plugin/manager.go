package plugin

import (
	"fmt"
	"io"

	"github.com/openmark/openmark/pkg/logger"
)

// Ref selects one plugin of a family by name plus its configuration blob.
type Ref struct {
	Name   string
	Config Config
}

// ManagerConfig names the active plugin per family.
type ManagerConfig struct {
	Auth        Ref
	Source      Ref
	Annotations Ref
}

// Manager constructs and holds the three active plugin instances for the
// process lifetime. Construction failures are fatal to the caller
// (typically process startup).
type Manager struct {
	registry    *Registry
	auth        Authenticator
	source      Source
	annotations AnnotationStore
}

func NewManager(r *Registry, cfg ManagerConfig) (*Manager, error) {
	m := &Manager{registry: r}

	inst, err := r.Create(FamilyAuth, cfg.Auth.Name, cfg.Auth.Config)
	if err != nil {
		return nil, err
	}
	auth, ok := inst.(Authenticator)
	if !ok {
		return nil, &ConstructionError{Family: FamilyAuth, Name: cfg.Auth.Name,
			Err: fmt.Errorf("%T does not implement Authenticator", inst)}
	}
	m.auth = auth

	inst, err = r.Create(FamilySource, cfg.Source.Name, cfg.Source.Config)
	if err != nil {
		return nil, err
	}
	source, ok := inst.(Source)
	if !ok {
		return nil, &ConstructionError{Family: FamilySource, Name: cfg.Source.Name,
			Err: fmt.Errorf("%T does not implement Source", inst)}
	}
	m.source = source

	inst, err = r.Create(FamilyAnnotations, cfg.Annotations.Name, cfg.Annotations.Config)
	if err != nil {
		return nil, err
	}
	store, ok := inst.(AnnotationStore)
	if !ok {
		return nil, &ConstructionError{Family: FamilyAnnotations, Name: cfg.Annotations.Name,
			Err: fmt.Errorf("%T does not implement AnnotationStore", inst)}
	}
	m.annotations = store

	logger.Infof("plugins loaded: auth=%s source=%s annotations=%s",
		cfg.Auth.Name, cfg.Source.Name, cfg.Annotations.Name)
	return m, nil
}

func (m *Manager) Auth() Authenticator          { return m.auth }
func (m *Manager) Source() Source               { return m.source }
func (m *Manager) Annotations() AnnotationStore { return m.annotations }
func (m *Manager) Registry() *Registry          { return m.registry }

// Close shuts down any plugin holding external connections.
func (m *Manager) Close() error {
	var firstErr error
	for _, p := range []any{m.auth, m.source, m.annotations} {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
