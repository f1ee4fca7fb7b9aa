package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
)

// Match is a reply that passed every filter and is ready for ingestion.
type Match struct {
	Request *entity.Request
	Vendor  *entity.Vendor
	Body    string
}

// Matcher resolves an inbound reply to exactly one (request, vendor) pair.
type Matcher struct {
	vendors   repository.VendorDirectory
	requests  repository.RequestStore
	proposals repository.ProposalStore
}

func NewMatcher(vendors repository.VendorDirectory, requests repository.RequestStore, proposals repository.ProposalStore) *Matcher {
	return &Matcher{vendors: vendors, requests: requests, proposals: proposals}
}

// Match runs the filters in order and stops at the first one that rejects the message.
// The directory is read on every call so vendor edits apply to the next message.
func (m *Matcher) Match(ctx context.Context, msg entity.InboundMessage) (*Match, Outcome) {
	sender := entity.NormalizeEmail(msg.From)

	// 1. Known sender
	known, err := m.isRegistered(ctx, sender)
	if err != nil {
		return nil, failed(fmt.Errorf("vendor directory: %w", err))
	}
	if !known {
		return nil, discarded(ReasonUnknownSender)
	}

	// 2. Request id in the subject
	requestID, ok := entity.RequestIDFromSubject(msg.Subject)
	if !ok {
		return nil, discarded(ReasonMissingRequestID)
	}

	// 3. Request exists
	req, err := m.requests.Get(ctx, requestID)
	if errors.Is(err, entity.ErrRequestNotFound) {
		return nil, discarded(ReasonRequestNotFound)
	}
	if err != nil {
		return nil, failed(fmt.Errorf("request store: %w", err))
	}

	// 4. Vendor exists
	vendor, err := m.vendors.FindByEmail(ctx, sender)
	if errors.Is(err, entity.ErrVendorNotFound) {
		return nil, discarded(ReasonVendorNotFound)
	}
	if err != nil {
		return nil, failed(fmt.Errorf("vendor directory: %w", err))
	}

	// 5. Not answered yet
	exists, err := m.proposals.Exists(ctx, req.ID, vendor.ID)
	if err != nil {
		return nil, failed(fmt.Errorf("proposal store: %w", err))
	}
	if exists {
		return nil, discarded(ReasonDuplicate)
	}

	log.Printf("[MATCHER] uid=%d matched request=%s vendor=%s", msg.UID, req.ID, vendor.ID)
	return &Match{Request: req, Vendor: vendor, Body: msg.Body}, Outcome{}
}

func (m *Matcher) isRegistered(ctx context.Context, sender string) (bool, error) {
	if sender == "" {
		return false, nil
	}
	vendors, err := m.vendors.List(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range vendors {
		if entity.NormalizeEmail(v.Email) == sender {
			return true, nil
		}
	}
	return false, nil
}
