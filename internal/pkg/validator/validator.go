package validator

// Validator abstracts struct validation against declared rules.
type Validator interface {
	// Validate returns nil when data passes all of its validation rules.
	Validate(data any) error
}
