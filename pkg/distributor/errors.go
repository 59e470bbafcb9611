package distributor

import "errors"

// Operation errors. Every failure aborts the whole operation with no
// partial state; callers branch on these with errors.Is.
var (
	// ErrShutdown is returned for claims, root updates and repeated
	// shutdowns once a distribution has been shut down.
	ErrShutdown = errors.New("distribution is shut down")

	// ErrAlreadyClaimed is returned when the presented total does not
	// strictly exceed what the claimant was already paid.
	ErrAlreadyClaimed = errors.New("total amount does not exceed already claimed amount")

	// ErrInvalidProof is returned when the merkle proof does not fold to
	// the distribution's current root.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrProofTooLong is returned before any hashing when a proof carries
	// more siblings than any supported tree depth.
	ErrProofTooLong = errors.New("merkle proof exceeds maximum supported depth")

	// ErrInsufficientBalance is returned when the vault cannot cover the
	// claim delta.
	ErrInsufficientBalance = errors.New("vault balance cannot cover claim")

	// ErrUnauthorized is returned when an admin-only operation is invoked
	// by anyone other than the current admin.
	ErrUnauthorized = errors.New("caller is not the distribution admin")

	// ErrNotFound is returned when no distribution exists for an ID.
	ErrNotFound = errors.New("distribution not found")

	// ErrExists is returned when initializing a distribution whose ID is
	// already taken.
	ErrExists = errors.New("distribution already exists")
)
