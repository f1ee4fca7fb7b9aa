package entity

import "time"

// InboundMessage is a parsed vendor email as fetched from the mailbox.
type InboundMessage struct {
	UID        uint32
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Generation is a single completion returned by a language model.
type Generation struct {
	Content    string         `json:"content"`
	Model      string         `json:"model"`
	TokenCount int            `json:"token_count"`
	Latency    int64          `json:"latency_ms"`
	Metadata   map[string]any `json:"metadata"`
}

// ProposalEvent is published after a proposal has been persisted.
type ProposalEvent struct {
	ProposalID string    `json:"proposal_id"`
	RequestID  string    `json:"request_id"`
	VendorID   string    `json:"vendor_id"`
	TotalPrice float64   `json:"total_price"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source"` // "mailbox" or "manual"
	OccurredAt time.Time `json:"occurred_at"`
}

// ArchivedReply is a vendor reply returned by a similarity search over the archive.
type ArchivedReply struct {
	ProposalID string  `json:"proposalId"`
	RequestID  string  `json:"rfpId"`
	VendorID   string  `json:"vendorId"`
	Excerpt    string  `json:"excerpt"`
	Score      float32 `json:"score"`
}
