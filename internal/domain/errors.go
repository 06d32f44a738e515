package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateSession = errors.New("session already exists for this date")
	ErrDuplicateSet     = errors.New("set already exists for this exercise and set number")
	ErrConflict         = errors.New("conflict")

	// ErrOffline wraps transport failures talking to the server.
	ErrOffline = errors.New("server unreachable")
)
