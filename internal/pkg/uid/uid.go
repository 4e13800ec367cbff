package uid

// StringID generates opaque string identifiers (e.g. correlation IDs).
type StringID interface {
	Generate() string
}

// NumberID generates int64 identifiers (e.g. challenge and audit-event IDs).
type NumberID interface {
	Generate() int64
}
