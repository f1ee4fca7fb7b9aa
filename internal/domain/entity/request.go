package entity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDLength is the number of hex characters in every identifier the stores hand out.
// Vendors quote request ids back in their reply subjects, so the length is part of the wire format.
const IDLength = 24

var requestIDPattern = regexp.MustCompile(`(?i)ID:\s*([a-f0-9]{24})`)

// NewID returns a random lowercase hex identifier of IDLength characters.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
}

// IsValidID reports whether id has the identifier format used by the stores.
func IsValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// RequestIDFromSubject finds the request id token in a reply subject ("... - ID: <hex>").
// The match is case-insensitive and the returned id is lowercased.
func RequestIDFromSubject(subject string) (string, bool) {
	m := requestIDPattern.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

type RequestStatus string

const (
	StatusDraft             RequestStatus = "draft"
	StatusSent              RequestStatus = "sent"
	StatusProposalsReceived RequestStatus = "proposals_received"
)

func (s RequestStatus) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusSent:
		return 1
	case StatusProposalsReceived:
		return 2
	default:
		return -1
	}
}

func (s RequestStatus) Valid() bool { return s.rank() >= 0 }

// CanTransitionTo allows staying put or moving exactly one step forward.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	step := next.rank() - s.rank()
	return step == 0 || step == 1
}

type LineItem struct {
	ItemType string `json:"itemType"`
	Quantity int    `json:"quantity"`
	Specs    string `json:"specs"`
}

// Request is a procurement ask sent to one or more vendors.
type Request struct {
	ID                   string        `json:"id"`
	Title                string        `json:"title"`
	Description          string        `json:"descriptionText"`
	Budget               float64       `json:"budget"`
	DeliveryDeadlineDays int           `json:"deliveryDeadline"`
	PaymentTerms         string        `json:"paymentTerms"`
	LineItems            []LineItem    `json:"lineItems"`
	Status               RequestStatus `json:"status"`
	SentTo               []string      `json:"sentTo"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

func (r *Request) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if r.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidRequest)
	}
	if r.DeliveryDeadlineDays < 0 {
		return fmt.Errorf("%w: delivery deadline must not be negative", ErrInvalidRequest)
	}
	for i, item := range r.LineItems {
		if item.Quantity < 0 {
			return fmt.Errorf("%w: line item %d has a negative quantity", ErrInvalidRequest, i+1)
		}
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, r.Status)
	}
	return nil
}

// ProposalSubject is the subject line used when the request goes out to vendors.
// Replies keep it (prefixed with "Re:"), which is how the mailbox poller finds the request again.
func ProposalSubject(r *Request) string {
	return fmt.Sprintf("RFP: %s - ID: %s", r.Title, r.ID)
}
