package entity

import (
	"encoding/json"
	"time"
)

// DefaultCurrency is used when the oracle does not report a currency.
const DefaultCurrency = "USD"

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Proposal is one vendor's structured answer to one request.
// At most one exists per (RequestID, VendorID).
type Proposal struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"rfpId"`
	VendorID       string          `json:"vendorId"`
	VendorName     string          `json:"vendorName,omitempty"`
	TotalPrice     float64         `json:"totalPrice"`
	Currency       string          `json:"currency"`
	DeliveryDays   int             `json:"deliveryDays"`
	PaymentTerms   string          `json:"paymentTerms"`
	WarrantyMonths int             `json:"warrantyMonths"`
	RawBody        string          `json:"rawEmailBody"`
	Extraction     json.RawMessage `json:"parsedDetailsJSON,omitempty"`
	AIScore        *float64        `json:"aiScore,omitempty"`
	AISummary      string          `json:"aiSummary,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (p *Proposal) Scored() bool { return p.AIScore != nil }

// Extraction is what the oracle reads out of a vendor reply.
type Extraction struct {
	TotalPrice     float64 `json:"totalPrice"`
	Currency       string  `json:"currency"`
	DeliveryDays   int     `json:"deliveryDays"`
	PaymentTerms   string  `json:"paymentTerms"`
	WarrantyMonths int     `json:"warrantyMonths"`
	Notes          string  `json:"notes"`
}

// NewProposal builds an unsaved proposal from an extraction, keeping the raw reply verbatim.
func NewProposal(requestID, vendorID, rawBody string, ex *Extraction) (*Proposal, error) {
	doc, err := json.Marshal(ex)
	if err != nil {
		return nil, err
	}
	currency := ex.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Proposal{
		ID:             NewID(),
		RequestID:      requestID,
		VendorID:       vendorID,
		TotalPrice:     ex.TotalPrice,
		Currency:       currency,
		DeliveryDays:   ex.DeliveryDays,
		PaymentTerms:   ex.PaymentTerms,
		WarrantyMonths: ex.WarrantyMonths,
		RawBody:        rawBody,
		Extraction:     doc,
	}, nil
}

// ScoreCandidate is the view of a proposal handed to the oracle for comparison.
type ScoreCandidate struct {
	VendorID       string  `json:"vendorId"`
	VendorName     string  `json:"vendorName"`
	TotalPrice     float64 `json:"totalPrice"`
	Currency       string  `json:"currency"`
	DeliveryDays   int     `json:"deliveryDays"`
	WarrantyMonths int     `json:"warrantyMonths"`
	PaymentTerms   string  `json:"paymentTerms"`
}

type VendorScore struct {
	VendorID  string  `json:"vendorId"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// ScoreUpdate is one proposal's new score, written together with the rest of its batch.
type ScoreUpdate struct {
	ProposalID string
	Score      float64
	Rationale  string
}

type ScoreResult struct {
	Scores         []VendorScore `json:"scores"`
	Recommendation string        `json:"recommendation"`
}

// ClampScore keeps a model-provided score inside [MinScore, MaxScore].
func ClampScore(s float64) float64 {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
