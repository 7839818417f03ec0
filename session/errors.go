package session

import "errors"

// ErrNoSnapshot is returned when a reference is resolved before any
// snapshot was captured, or after navigation invalidated the last one.
var ErrNoSnapshot = errors.New("session: no element snapshot captured")

// ErrUnresolvableRef is returned when a reference is not present in the
// current snapshot.
var ErrUnresolvableRef = errors.New("session: reference not in current snapshot")

// ErrBusy is returned when a pipeline run is requested while another one
// holds the session.
var ErrBusy = errors.New("session: another operation is in progress")

// ErrDialogConsumed is returned when a dialog is accepted or dismissed twice.
var ErrDialogConsumed = errors.New("session: dialog already consumed")

// ErrTimeout wraps every bounded wait that elapses without its condition.
var ErrTimeout = errors.New("session: timed out")
