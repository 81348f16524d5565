package chat

import "errors"

var (
	// ErrNotMember is returned when the sender does not participate in the
	// conversation.
	ErrNotMember = errors.New("not a conversation member")

	// ErrMuted is returned when the sender's account is muted. Muted users
	// can still read history and receive pushes.
	ErrMuted = errors.New("account muted")

	// ErrBanned is returned when the sender's account is suspended.
	ErrBanned = errors.New("account suspended")

	// ErrEmptyBody is returned for a blank message body.
	ErrEmptyBody = errors.New("empty message body")

	// ErrBodyTooLong is returned when the body exceeds the size bound.
	ErrBodyTooLong = errors.New("message body too long")
)

// IsRejection reports whether err is a caller fault (4xx) rather than a
// store failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrMuted) ||
		errors.Is(err, ErrBanned) ||
		errors.Is(err, ErrEmptyBody) ||
		errors.Is(err, ErrBodyTooLong)
}
