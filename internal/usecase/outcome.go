package usecase

import "procurement-core/internal/domain/entity"

type OutcomeStatus string

const (
	OutcomeAccepted  OutcomeStatus = "accepted"
	OutcomeDiscarded OutcomeStatus = "discarded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// DiscardReason says which filter rejected an inbound reply.
type DiscardReason string

const (
	ReasonUnknownSender    DiscardReason = "unknown_sender"
	ReasonMissingRequestID DiscardReason = "missing_request_id"
	ReasonRequestNotFound  DiscardReason = "request_not_found"
	ReasonVendorNotFound   DiscardReason = "vendor_not_found"
	ReasonDuplicate        DiscardReason = "duplicate"
)

// Outcome is the result of pushing one reply through matching and ingestion.
// The background path logs it; the foreground path turns it into an error with Err().
type Outcome struct {
	Status   OutcomeStatus
	Reason   DiscardReason
	Proposal *entity.Proposal
	Cause    error
}

func accepted(p *entity.Proposal) Outcome {
	return Outcome{Status: OutcomeAccepted, Proposal: p}
}

func discarded(reason DiscardReason) Outcome {
	return Outcome{Status: OutcomeDiscarded, Reason: reason}
}

func failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Cause: err}
}

func (o Outcome) Accepted() bool { return o.Status == OutcomeAccepted }

// Err maps the outcome onto the domain sentinels. Accepted outcomes return nil.
func (o Outcome) Err() error {
	switch o.Status {
	case OutcomeAccepted:
		return nil
	case OutcomeFailed:
		return o.Cause
	}
	switch o.Reason {
	case ReasonRequestNotFound, ReasonMissingRequestID:
		return entity.ErrRequestNotFound
	case ReasonVendorNotFound, ReasonUnknownSender:
		return entity.ErrVendorNotFound
	case ReasonDuplicate:
		return entity.ErrDuplicateProposal
	}
	return entity.ErrInvalidRequest
}
