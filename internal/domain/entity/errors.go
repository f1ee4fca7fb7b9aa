package entity

import "errors"

// Standard domain errors
var (
	ErrInvalidRequest   = errors.New("invalid request parameters")
	ErrRequestNotFound  = errors.New("request not found")
	ErrVendorNotFound   = errors.New("vendor not found")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrVendorExists     = errors.New("a vendor with this email already exists")

	// ErrDuplicateProposal means a proposal already exists (or is being created) for the (request, vendor) pair.
	ErrDuplicateProposal = errors.New("proposal already exists for this vendor and request")
	ErrStatusRegression  = errors.New("request status can only move forward")

	ErrTransport      = errors.New("mailbox transport error")
	ErrScanInProgress = errors.New("a mailbox scan is already in progress")
	ErrScanLeaseLost  = errors.New("mailbox scan lease was lost to another replica")

	// Oracle failures. Nothing is persisted when either is returned.
	ErrExtraction = errors.New("failed to extract proposal")
	ErrScoring    = errors.New("failed to score proposals")

	ErrArchiveDisabled = errors.New("reply archive is not configured")
)
