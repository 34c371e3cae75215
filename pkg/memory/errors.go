package memory

import "github.com/pkg/errors"

var (
	// ErrExpired is returned when promoting a weak handle whose object is gone
	ErrExpired = errors.New("memory: handle already expired")

	// Misuse of handles; raised as panics.
	ErrNullDeref        = errors.New("memory: dereference of null handle")
	ErrReleasedBlock    = errors.New("memory: control block used after release")
	ErrCounterUnderflow = errors.New("memory: reference counter underflow")
)
