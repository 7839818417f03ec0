package campus

import "errors"

// ErrConfiguration is returned when credentials are missing. Checked
// eagerly: the browser is never contacted without them.
var ErrConfiguration = errors.New("campus: missing credentials")

// ErrValidation is returned when an operation's value does not match the
// shape its action requires. This is a caller error, not a page error.
var ErrValidation = errors.New("campus: invalid operation")

// ErrResolution is returned when no snapshot exists or a reference is not
// in the current snapshot.
var ErrResolution = errors.New("campus: reference resolution failed")

// ErrInteraction is returned when the page rejected an action.
var ErrInteraction = errors.New("campus: page rejected action")

// ErrAuthentication is returned when the login handshake fails terminally.
var ErrAuthentication = errors.New("campus: authentication failed")

// ErrConfirmationAbsent is returned when no dialog appeared within the
// grace period after submit. On this platform a recorded submission always
// raises a confirmation dialog, so silence means the submission is not
// acknowledged server-side.
var ErrConfirmationAbsent = errors.New("campus: no confirmation dialog appeared")

// ErrConfirmationMismatch is returned when a dialog appeared but its text
// matched none of the accepted confirmation phrases.
var ErrConfirmationMismatch = errors.New("campus: unexpected confirmation dialog text")
