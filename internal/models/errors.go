package models

import "errors"

// ErrNotFound reports a user, story or achievement lookup miss. Repositories
// translate their driver-specific miss into this sentinel so callers can
// errors.Is against it.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists reports an attempt to create a user whose deterministic id
// is already taken.
var ErrAlreadyExists = errors.New("already exists")
