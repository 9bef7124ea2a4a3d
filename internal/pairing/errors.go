package pairing

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionAlreadyPaired = errors.New("session already paired")
	ErrViewerNotConnected   = errors.New("viewer connection not found")
)
