package cloud

// Tags is a resource's tag mapping. A resource can carry no mapping at all,
// an empty mapping, or a mapping without a given key; Present and Lookup
// keep those cases apart.
type Tags struct {
	values  map[string]string
	present bool
}

// NewTags wraps m. A nil map means the resource has no tag mapping.
func NewTags(m map[string]string) Tags {
	if m == nil {
		return Tags{}
	}
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Tags{values: values, present: true}
}

// NoTags returns the absent mapping.
func NoTags() Tags {
	return Tags{}
}

// Present reports whether the resource has a tag mapping, possibly empty.
func (t Tags) Present() bool {
	return t.present
}

// Lookup returns the value of key.
func (t Tags) Lookup(key string) (string, bool) {
	if !t.present {
		return "", false
	}
	v, ok := t.values[key]
	return v, ok
}
