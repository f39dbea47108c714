package patients

import "errors"

var (
	// ErrPatientNotFound is returned when no patient matches the lookup.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrStaleState is returned when the patient changed since it was read.
	ErrStaleState = errors.New("patient state changed concurrently")

	// ErrInvalidPhone is returned when a phone number is empty.
	ErrInvalidPhone = errors.New("phone is required")
)
