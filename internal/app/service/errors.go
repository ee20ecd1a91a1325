package service

import "errors"

var (
	// ErrInvalidURL rejects destinations that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("destination URL is invalid")
	// ErrInvalidAlias rejects aliases that fail the URL-safe format check.
	ErrInvalidAlias = errors.New("alias contains invalid characters or length")
	// ErrAliasTaken rejects aliases colliding with an existing code or alias.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrGenerationExhausted is a fatal configuration condition: the code
	// alphabet/length no longer leaves headroom for the table size. It is
	// surfaced to operators, never to end users.
	ErrGenerationExhausted = errors.New("short code generation exhausted retries")
)
