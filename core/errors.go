package core

import "fmt"

var (
	// ErrNotFound is returned when no open session exists for a
	// connector/address pair.
	ErrNotFound = fmt.Errorf("session not found")
)
