package repository

import (
	"context"
	"procurement-core/internal/domain/entity"
	"time"
)

type VendorDirectory interface {
	List(ctx context.Context) ([]entity.Vendor, error)
	FindByEmail(ctx context.Context, email string) (*entity.Vendor, error)
	Get(ctx context.Context, id string) (*entity.Vendor, error)
	Create(ctx context.Context, v *entity.Vendor) error
}

type RequestStore interface {
	Get(ctx context.Context, id string) (*entity.Request, error)
	List(ctx context.Context) ([]entity.Request, error)
	Create(ctx context.Context, r *entity.Request) error
	SetStatus(ctx context.Context, id string, status entity.RequestStatus) error
	SetAddressees(ctx context.Context, id string, vendorIDs []string) error
}

type ProposalStore interface {
	Exists(ctx context.Context, requestID, vendorID string) (bool, error)
	Create(ctx context.Context, p *entity.Proposal) error
	ListByRequest(ctx context.Context, requestID string) ([]entity.Proposal, error)
	// UpdateScores writes every update or none of them.
	UpdateScores(ctx context.Context, updates []entity.ScoreUpdate) error
}

// Oracle is the text-understanding service. Extract fails with entity.ErrExtraction
// and Score with entity.ErrScoring when the model output has no usable structure.
type Oracle interface {
	Extract(ctx context.Context, rawText string, req *entity.Request) (*entity.Extraction, error)
	Score(ctx context.Context, req *entity.Request, candidates []entity.ScoreCandidate) (*entity.ScoreResult, error)
}

type AIProvider interface {
	Generate(ctx context.Context, prompt string) (*entity.Generation, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Mailbox opens connections to the shared vendor inbox.
type Mailbox interface {
	Connect(ctx context.Context, timeout time.Duration) (MailboxSession, error)
}

// MailboxSession is one open connection. Callers must Close it.
type MailboxSession interface {
	SelectInbox(ctx context.Context) error
	SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error)
	Fetch(ctx context.Context, uids []uint32) ([]entity.InboundMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// ProposalGuard hands out short-lived exclusive claims on a (request, vendor) pair
// while its proposal is being extracted and written.
type ProposalGuard interface {
	Claim(ctx context.Context, requestID, vendorID string) (bool, error)
	Release(ctx context.Context, requestID, vendorID string) error
}

// ScanLease keeps replicas from scanning the same inbox at the same time.
// ok is false when another holder has it.
type ScanLease interface {
	Acquire(ctx context.Context, ttl time.Duration) (lease Lease, ok bool, err error)
}

// Lease is one held scan lease. Extend fails with entity.ErrScanLeaseLost once
// the lease has expired or changed hands. Release is safe after expiry.
type Lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

type ReplyArchive interface {
	Save(ctx context.Context, p *entity.Proposal, vector []float32) error
	// Search returns the closest replies; a non-empty requestID limits them to that request.
	Search(ctx context.Context, vector []float32, requestID string, limit uint64) ([]entity.ArchivedReply, error)
}

type EventPublisher interface {
	PublishProposalReceived(ctx context.Context, evt entity.ProposalEvent) error
}
