// Package repository implements the MySQL persistence layer: the
// engine's Store plus the repositories used by the management and auth
// handlers.  Sentinel values below let handlers distinguish failure
// scenarios without inspecting SQL errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own or manage.  Handlers should
// translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicateSlot is returned when creating or rescheduling a
// performance would violate the unique (show_id, starts_at)
// constraint.  Handlers should translate this into an HTTP 409
// response.
var ErrDuplicateSlot = errors.New("performance slot already exists")
