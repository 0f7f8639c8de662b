package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type marker struct{ tag string }

func factoryFor(tag string) Factory {
	return func(cfg Config) (any, error) { return &marker{tag: tag}, nil }
}

func TestRegistry_CreateUsesRegisteredFactory(t *testing.T) {
	r := NewRegistry()
	r.Register(FamilyAuth, "foo", factoryFor("first"))

	inst, err := r.Create(FamilyAuth, "foo", nil)
	require.NoError(t, err)
	require.Equal(t, "first", inst.(*marker).tag)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(FamilyAuth, "foo", factoryFor("first"))
	r.Register(FamilyAuth, "foo", factoryFor("second"))

	inst, err := r.Create(FamilyAuth, "foo", nil)
	require.NoError(t, err)
	require.Equal(t, "second", inst.(*marker).tag, "overwrite lets custom plugins shadow built-ins")
}

func TestRegistry_FamiliesAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.Register(FamilyAuth, "foo", factoryFor("auth"))
	r.Register(FamilySource, "foo", factoryFor("source"))

	inst, err := r.Create(FamilySource, "foo", nil)
	require.NoError(t, err)
	require.Equal(t, "source", inst.(*marker).tag)

	_, err = r.Create(FamilyAnnotations, "foo", nil)
	require.ErrorIs(t, err, ErrPluginNotFound)
}

func TestRegistry_CreateMissingIsAlwaysNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(FamilyAuth, "missing", Config{"anything": true})
	require.ErrorIs(t, err, ErrPluginNotFound)

	var ce *ConstructionError
	require.False(t, errors.As(err, &ce), "not-found must not read as a construction failure")
}

func TestRegistry_ConstructionErrorPropagates(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("bad config")
	r.Register(FamilyAuth, "broken", func(cfg Config) (any, error) { return nil, boom })

	_, err := r.Create(FamilyAuth, "broken", nil)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, FamilyAuth, ce.Family)
	require.Equal(t, "broken", ce.Name)
	require.ErrorIs(t, err, boom)
}

func TestRegistry_DiscoverOrderAndTolerance(t *testing.T) {
	r := NewRegistry()
	builtins := []Descriptor{
		{Family: FamilyAuth, Name: "local", Factory: factoryFor("builtin")},
		{Family: FamilyAuth, Name: "", Factory: factoryFor("nameless")}, // skipped
		{Family: FamilySource, Name: "bad", Factory: nil},              // skipped
	}
	custom := []Descriptor{
		{Family: FamilyAuth, Name: "local", Factory: factoryFor("custom")},
	}

	// a nil source (no custom plugin set configured) must be tolerated
	r.Discover(builtins, nil, custom)

	inst, err := r.Create(FamilyAuth, "local", nil)
	require.NoError(t, err)
	require.Equal(t, "custom", inst.(*marker).tag, "later sources shadow earlier ones")

	require.Equal(t, []string{"local"}, r.ListNames(FamilyAuth))
	require.Empty(t, r.ListNames(FamilySource))
}

func TestRegistry_ListNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(FamilySource, "s3", factoryFor(""))
	r.Register(FamilySource, "http", factoryFor(""))
	r.Register(FamilySource, "local", factoryFor(""))

	require.Equal(t, []string{"http", "local", "s3"}, r.ListNames(FamilySource))
}

func TestNameFromType(t *testing.T) {
	cases := map[string]string{
		"LocalAuthPlugin":            "local",
		"MongoDBAuthPlugin":          "mongodb",
		"PostgreSQLAuthPlugin":       "postgresql",
		"HTTPSourcePlugin":           "http",
		"S3SourcePlugin":             "s3",
		"LocalSourcePlugin":          "local",
		"LocalAnnotationsPlugin":     "local",
		"MongoDBAnnotationsPlugin":   "mongodb",
		"PostgreSQLAnnotationsPlugin": "postgresql",
		"WeirdPlugin":                "weird",
	}
	for in, want := range cases {
		require.Equal(t, want, NameFromType(in), "NameFromType(%q)", in)
	}
}
