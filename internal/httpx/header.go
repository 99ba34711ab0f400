package httpx

// Header is an insertion-ordered collection of HTTP header fields. Keys are
// case-sensitive, matching the literal bytes parsed off the wire (the
// parser never canonicalizes header names) or set by a handler.
//
// A plain map would lose insertion order, which the response framer needs
// to write headers back out in the order a handler (or the state machine)
// added them; a small ordered slice is simplest and requests/responses
// rarely carry more than a dozen headers.
type Header struct {
	keys   []string
	values []string
}

// Get returns the value of the first header with the given name, or "" if
// absent.
func (h *Header) Get(name string) string {
	for i, k := range h.keys {
		if k == name {
			return h.values[i]
		}
	}
	return ""
}

// Has reports whether a header with the given name is present.
func (h *Header) Has(name string) bool {
	for _, k := range h.keys {
		if k == name {
			return true
		}
	}
	return false
}

// Set replaces any existing values for name with a single value, preserving
// the position of the first existing occurrence (or appending if new).
func (h *Header) Set(name, value string) {
	found := false
	keys, values := h.keys[:0], h.values[:0]
	for i, k := range h.keys {
		v := h.values[i]
		if k == name {
			if found {
				continue
			}
			found = true
			v = value
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	h.keys, h.values = keys, values
	if !found {
		h.Add(name, value)
	}
}

// Add appends a header, preserving insertion order even if name already
// exists.
func (h *Header) Add(name, value string) {
	h.keys = append(h.keys, name)
	h.values = append(h.values, value)
}

// Len returns the number of header entries.
func (h *Header) Len() int { return len(h.keys) }

// Each calls fn once per header in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	for i, k := range h.keys {
		fn(k, h.values[i])
	}
}

// Map materializes the headers as a map, for callers (handlers) that want
// simple lookups and don't care about duplicate-header or ordering
// semantics.
func (h *Header) Map() map[string]string {
	m := make(map[string]string, len(h.keys))
	for i, k := range h.keys {
		m[k] = h.values[i]
	}
	return m
}
