package credential

import "errors"

var (
	// ErrInvalidCredential is returned when a token fails signature, format,
	// expiry, or subject checks. It is the terminal "401" class: callers must
	// not retry and must not fall back to an unauthenticated success.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrRecordNotFound is returned when a refresh credential has no backing
	// store record.
	ErrRecordNotFound = errors.New("credential record not found")

	// ErrRecordRevoked is returned when the backing record is revoked.
	ErrRecordRevoked = errors.New("credential revoked")

	// ErrRecordExpired is returned when the backing record is past its expiry.
	ErrRecordExpired = errors.New("credential expired")

	// ErrReuseDetected is returned when a rotated (replaced) refresh credential
	// is presented again. The store revokes every credential of the affected
	// user before this is returned.
	ErrReuseDetected = errors.New("refresh credential reuse detected")

	// ErrIssuance is returned when minting a pair fails on the store write.
	ErrIssuance = errors.New("credential issuance failed")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid credential config")
)

// IsInvalid reports whether err belongs to the invalid-credential class
// (bad signature/expired/revoked/missing/reused). Store I/O failures are
// deliberately excluded: they surface as 5xx, not 401.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrRecordRevoked) ||
		errors.Is(err, ErrRecordExpired) ||
		errors.Is(err, ErrReuseDetected)
}
