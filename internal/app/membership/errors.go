// internal/app/membership/errors.go
package membership

import "errors"

// Invariant-guard and validation errors surfaced by the engine. None of
// these are transient: callers prompt the user instead of retrying.
var (
	ErrNameRequired    = errors.New("group name is required")
	ErrSubjectRequired = errors.New("group subject is required")
	ErrBadCode         = errors.New("join code is malformed")

	ErrGroupNotFound = errors.New("no group with this join code")
	ErrAlreadyMember = errors.New("user is already a member of this group")
	ErrGroupFull     = errors.New("group is at its member limit")

	// ErrSoleAdmin guards the "at least one admin" invariant: the last
	// admin cannot leave, because no admin-transfer operation exists to
	// resolve the group automatically.
	ErrSoleAdmin = errors.New("the only admin cannot leave the group")

	ErrNotAdmin  = errors.New("only a group admin may do this")
	ErrNotMember = errors.New("user is not a member of this group")
)
