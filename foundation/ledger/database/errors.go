package database

import "errors"

// Set of error variables indicating why a transaction or block was rejected.
// These are recoverable conditions, never process failures.
var (
	// ErrMissingInput is returned when a transaction references an output
	// that is not in the unspent set. This covers both outputs that never
	// existed and outputs that were already spent.
	ErrMissingInput = errors.New("referenced output does not exist or is spent")

	// ErrDuplicateInput is returned when a transaction references the same
	// output more than once.
	ErrDuplicateInput = errors.New("duplicate input reference")

	// ErrInsufficientFunds is returned when a transaction's outputs exceed
	// its inputs.
	ErrInsufficientFunds = errors.New("output value exceeds input value")

	// ErrInvalidSignature is returned when an input's signature does not
	// recover the owner of the referenced output.
	ErrInvalidSignature = errors.New("input signature does not match output owner")

	// ErrExcessiveReward is returned when a block's coinbase transaction
	// claims more than the mining reward plus the block's fees.
	ErrExcessiveReward = errors.New("coinbase value exceeds reward plus fees")

	// ErrBadLinkage is returned when a block does not extend the current
	// latest block.
	ErrBadLinkage = errors.New("block does not link to the previous block")

	// ErrBadProofOfWork is returned when a block hash does not meet the
	// difficulty target.
	ErrBadProofOfWork = errors.New("block hash does not solve the proof of work")

	// ErrChainForked is returned when a proposed block is at least two ahead
	// of the latest block. The caller needs to perform a reconciliation.
	ErrChainForked = errors.New("blockchain forked, start resync")
)
