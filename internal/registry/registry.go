// Package registry holds the version registry: an explicit, injected mapping
// from version keys (normalizer, vocabulary, summary_model, ...) to the
// version strings engineers bump when the underlying logic changes.
package registry

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archive-cli/internal/model"
)

// Registry is a read-only version lookup. It is constructed once from
// configuration and never mutated during a run; pipelines receive it by
// reference rather than reading ambient global state.
type Registry struct {
	versions map[string]string
}

// New builds a Registry from a key → version map. The map is copied.
func New(versions map[string]string) *Registry {
	vs := make(map[string]string, len(versions))
	for k, v := range versions {
		vs[k] = v
	}
	return &Registry{versions: vs}
}

// Version returns the current version string for key. An undeclared key is a
// configuration error, not a per-item one.
func (r *Registry) Version(key string) (string, error) {
	v, ok := r.versions[key]
	if !ok {
		return "", eris.Errorf("registry: undeclared version key %q", key)
	}
	return v, nil
}

// Snapshot builds the manifest for the given keys at this instant. It fails
// on the first undeclared key.
func (r *Registry) Snapshot(keys []string) (model.Manifest, error) {
	m := make(model.Manifest, len(keys))
	for _, k := range keys {
		v, err := r.Version(k)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// Keys returns all declared version keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.versions))
	for k := range r.versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a copy of the full key → version map.
func (r *Registry) All() map[string]string {
	out := make(map[string]string, len(r.versions))
	for k, v := range r.versions {
		out[k] = v
	}
	return out
}
