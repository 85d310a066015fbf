// Package vault persists notes and attachments in a file-based vault and
// answers simple questions about its contents.
package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrVaultMissing indicates the vault root does not exist or is not a directory.
	ErrVaultMissing = errors.New("vault path does not exist")
	// ErrCollisionExhausted indicates no free file name was found within the attempt ceiling.
	ErrCollisionExhausted = errors.New("could not resolve filename conflict")
	// ErrPathEscape indicates a requested path resolves outside the vault.
	ErrPathEscape = errors.New("path escapes vault root")
)

// Error describes a failed vault operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("vault: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("vault: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
