package model

// Manifest is a snapshot of version registry values taken at the instant a
// transformer ran, embedded verbatim in the resulting derived output.
type Manifest map[string]string

// Equal reports whether two manifests have the same key set and the same
// value for every key. A nil manifest equals only an empty one.
func (m Manifest) Equal(other Manifest) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the manifest.
func (m Manifest) Clone() Manifest {
	if m == nil {
		return nil
	}
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
