package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
	"strings"
	"time"
)

const (
	SourceMailbox = "mailbox"
	SourceManual  = "manual"
)

// Ingestor turns a matched reply into a persisted proposal and advances its request.
type Ingestor struct {
	requests  repository.RequestStore
	vendors   repository.VendorDirectory
	proposals repository.ProposalStore
	oracle    repository.Oracle
	matcher   *Matcher

	guard    repository.ProposalGuard
	archive  repository.ReplyArchive
	embedder repository.Embedder
	events   repository.EventPublisher

	currency          string
	sideEffectTimeout time.Duration
	now               func() time.Time
}

type IngestorOption func(*Ingestor)

// WithProposalGuard adds an in-flight claim per (request, vendor) on top of the existence check.
func WithProposalGuard(g repository.ProposalGuard) IngestorOption {
	return func(i *Ingestor) { i.guard = g }
}

// WithReplyArchive stores an embedding of every accepted reply.
func WithReplyArchive(a repository.ReplyArchive, e repository.Embedder) IngestorOption {
	return func(i *Ingestor) {
		i.archive = a
		i.embedder = e
	}
}

func WithEventPublisher(p repository.EventPublisher) IngestorOption {
	return func(i *Ingestor) { i.events = p }
}

func WithDefaultCurrency(code string) IngestorOption {
	return func(i *Ingestor) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			i.currency = code
		}
	}
}

func NewIngestor(
	requests repository.RequestStore,
	vendors repository.VendorDirectory,
	proposals repository.ProposalStore,
	oracle repository.Oracle,
	opts ...IngestorOption,
) *Ingestor {
	i := &Ingestor{
		requests:          requests,
		vendors:           vendors,
		proposals:         proposals,
		oracle:            oracle,
		matcher:           NewMatcher(vendors, requests, proposals),
		currency:          entity.DefaultCurrency,
		sideEffectTimeout: 10 * time.Second,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// HandleMessage is the background entry point used by the poller. Nothing is returned
// to a caller beyond the outcome; discards and failures only show up in the log.
func (i *Ingestor) HandleMessage(ctx context.Context, msg entity.InboundMessage) Outcome {
	match, outcome := i.matcher.Match(ctx, msg)
	if match == nil {
		logOutcome(msg, outcome)
		return outcome
	}

	outcome = i.Ingest(ctx, match.Request, match.Vendor, match.Body, SourceMailbox)
	logOutcome(msg, outcome)
	return outcome
}

// Submit is the foreground entry point. It resolves the ids itself and reports every
// non-accepted outcome as an error.
func (i *Ingestor) Submit(ctx context.Context, requestID, vendorID, raw string) (*entity.Proposal, error) {
	req, err := i.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	vendor, err := i.vendors.Get(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	outcome := i.Ingest(ctx, req, vendor, raw, SourceManual)
	if !outcome.Accepted() {
		log.Printf("[INGEST] manual submission request=%s vendor=%s %s: %v", req.ID, vendor.ID, outcome.Status, outcome.Err())
		return nil, outcome.Err()
	}
	return outcome.Proposal, nil
}

// Ingest extracts, persists and advances for one (request, vendor, raw text) triple.
// Nothing is written unless extraction succeeds.
func (i *Ingestor) Ingest(ctx context.Context, req *entity.Request, vendor *entity.Vendor, raw, source string) Outcome {
	exists, err := i.proposals.Exists(ctx, req.ID, vendor.ID)
	if err != nil {
		return failed(fmt.Errorf("proposal store: %w", err))
	}
	if exists {
		return discarded(ReasonDuplicate)
	}

	if i.guard != nil {
		claimed, err := i.guard.Claim(ctx, req.ID, vendor.ID)
		if err != nil {
			// Redis being down must not stop ingestion; the unique index still holds.
			log.Printf("[INGEST] claim failed for request=%s vendor=%s, relying on store: %v", req.ID, vendor.ID, err)
		} else if !claimed {
			return discarded(ReasonDuplicate)
		} else {
			defer func() {
				if err := i.guard.Release(context.WithoutCancel(ctx), req.ID, vendor.ID); err != nil {
					log.Printf("[INGEST] release claim request=%s vendor=%s: %v", req.ID, vendor.ID, err)
				}
			}()
		}
	}

	extraction, err := i.oracle.Extract(ctx, raw, req)
	if err != nil {
		if !errors.Is(err, entity.ErrExtraction) {
			err = fmt.Errorf("%w: %v", entity.ErrExtraction, err)
		}
		return failed(err)
	}
	if strings.TrimSpace(extraction.Currency) == "" {
		extraction.Currency = i.currency
	}

	proposal, err := entity.NewProposal(req.ID, vendor.ID, raw, extraction)
	if err != nil {
		return failed(fmt.Errorf("%w: %v", entity.ErrExtraction, err))
	}
	proposal.VendorName = vendor.Name
	proposal.CreatedAt = i.now()
	proposal.UpdatedAt = proposal.CreatedAt

	if err := i.proposals.Create(ctx, proposal); err != nil {
		if errors.Is(err, entity.ErrDuplicateProposal) {
			return discarded(ReasonDuplicate)
		}
		return failed(fmt.Errorf("proposal store: %w", err))
	}

	if req.Status == entity.StatusSent {
		if err := i.requests.SetStatus(ctx, req.ID, entity.StatusProposalsReceived); err != nil {
			// The proposal is already stored; a later reply for the request retries the move.
			log.Printf("[INGEST] advance request=%s to %s: %v", req.ID, entity.StatusProposalsReceived, err)
		} else {
			req.Status = entity.StatusProposalsReceived
		}
	}

	i.afterAccept(ctx, proposal, source)
	return accepted(proposal)
}

// afterAccept runs the archive and event side effects. Their failures are logged only.
func (i *Ingestor) afterAccept(ctx context.Context, p *entity.Proposal, source string) {
	if i.archive == nil && i.events == nil {
		return
	}
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.sideEffectTimeout)
	defer cancel()

	if i.archive != nil && i.embedder != nil && strings.TrimSpace(p.RawBody) != "" {
		vector, err := i.embedder.CreateEmbedding(sideCtx, p.RawBody)
		if err != nil {
			log.Printf("[ARCHIVE] embedding for proposal=%s failed: %v", p.ID, err)
		} else if err := i.archive.Save(sideCtx, p, vector); err != nil {
			log.Printf("[ARCHIVE] save proposal=%s failed: %v", p.ID, err)
		}
	}

	if i.events != nil {
		evt := entity.ProposalEvent{
			ProposalID: p.ID,
			RequestID:  p.RequestID,
			VendorID:   p.VendorID,
			TotalPrice: p.TotalPrice,
			Currency:   p.Currency,
			Source:     source,
			OccurredAt: i.now(),
		}
		if err := i.events.PublishProposalReceived(sideCtx, evt); err != nil {
			log.Printf("[EVENTS] publish proposal=%s failed: %v", p.ID, err)
		}
	}
}

func logOutcome(msg entity.InboundMessage, o Outcome) {
	switch o.Status {
	case OutcomeAccepted:
		log.Printf("[INGEST] uid=%d accepted proposal=%s request=%s vendor=%s", msg.UID, o.Proposal.ID, o.Proposal.RequestID, o.Proposal.VendorID)
	case OutcomeDiscarded:
		log.Printf("[MATCHER] uid=%d from=%q discarded: %s", msg.UID, msg.From, o.Reason)
	case OutcomeFailed:
		log.Printf("[INGEST] uid=%d from=%q failed: %v", msg.UID, msg.From, o.Cause)
	}
}
