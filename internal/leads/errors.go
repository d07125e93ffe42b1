package leads

import "errors"

var (
	// ErrInvalidName is returned when the name is invalid
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when no email or phone was captured
	ErrMissingContact = errors.New("contact is required")

	// ErrMissingService is returned when the department is blank
	ErrMissingService = errors.New("service is required")

	// ErrInvalidSource is returned for an unknown provenance value
	ErrInvalidSource = errors.New("source must be Booking Form or AI Chatbot")

	// ErrInvalidStatus is returned for an unknown status value
	ErrInvalidStatus = errors.New("status must be New, Contacted or Closed")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrKeyNotFound is returned by a KV backend when the key is absent
	ErrKeyNotFound = errors.New("leads: key not found")

	// ErrCorruptCollection is returned when the stored value cannot be decoded
	ErrCorruptCollection = errors.New("leads: stored collection is malformed")
)

// IsValidationError reports whether err was caused by bad producer input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrMissingContact) ||
		errors.Is(err, ErrMissingService) ||
		errors.Is(err, ErrInvalidSource) ||
		errors.Is(err, ErrInvalidStatus)
}
