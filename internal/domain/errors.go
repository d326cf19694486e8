package domain

import "errors"

// ErrAuthenticationRequired is returned locally, before any request is sent,
// when a mutation needs a logged-in viewer.
var ErrAuthenticationRequired = errors.New("authentication required")
