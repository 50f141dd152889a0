package core

import "errors"

var (
	ErrConceptNotFound  = errors.New("concept not found")
	ErrEdgeNotFound     = errors.New("synaptic edge not found")
	ErrInvalidContent   = errors.New("invalid concept content")
	ErrContentTooLarge  = errors.New("concept content exceeds maximum allowed size")
	ErrInvalidID        = errors.New("malformed concept identifier")
	ErrInvalidParameter = errors.New("parameter out of range")
	ErrCorruptedRecord  = errors.New("corrupted record in storage")
	ErrShutdown         = errors.New("shutdown in progress")
)
