// Package builtin collects the descriptors of every plugin compiled into
// the gateway binary. It lives apart from the plugin package so the
// registry does not import its own implementations.
package builtin

import (
	"github.com/openmark/openmark/internal/plugin"
	"github.com/openmark/openmark/internal/plugin/annotationstore"
	"github.com/openmark/openmark/internal/plugin/auth"
	"github.com/openmark/openmark/internal/plugin/source"
)

// Descriptors returns the built-in plugin set, ready for Registry.Discover.
func Descriptors() []plugin.Descriptor {
	return []plugin.Descriptor{
		auth.LocalDescriptor,
		auth.MongoDescriptor,
		auth.PostgresDescriptor,
		source.LocalDescriptor,
		source.HTTPDescriptor,
		source.S3Descriptor,
		annotationstore.LocalDescriptor,
		annotationstore.MongoDescriptor,
		annotationstore.PostgresDescriptor,
	}
}
