package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"procurement-core/internal/adapter/export"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
	"procurement-core/internal/usecase"

	"github.com/gofiber/fiber/v2"
)

const (
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// Scanner runs one mailbox scan on demand.
type Scanner interface {
	Scan(ctx context.Context) (usecase.ScanReport, error)
}

type ProcurementHandler struct {
	vendors  repository.VendorDirectory
	requests repository.RequestStore
	ingestor *usecase.Ingestor
	scoring  *usecase.ScoringOrchestrator

	scanner  Scanner
	archive  repository.ReplyArchive
	embedder repository.Embedder
}

type HandlerOption func(*ProcurementHandler)

// WithScanner enables POST /v1/mailbox/scan.
func WithScanner(s Scanner) HandlerOption {
	return func(h *ProcurementHandler) { h.scanner = s }
}

// WithReplySearch enables GET /v1/replies/search.
func WithReplySearch(archive repository.ReplyArchive, embedder repository.Embedder) HandlerOption {
	return func(h *ProcurementHandler) {
		h.archive = archive
		h.embedder = embedder
	}
}

func NewProcurementHandler(
	vendors repository.VendorDirectory,
	requests repository.RequestStore,
	ingestor *usecase.Ingestor,
	scoring *usecase.ScoringOrchestrator,
	opts ...HandlerOption,
) *ProcurementHandler {
	h := &ProcurementHandler{vendors: vendors, requests: requests, ingestor: ingestor, scoring: scoring}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ProcurementHandler) CreateVendor(c *fiber.Ctx) error {
	var v entity.Vendor
	if err := c.BodyParser(&v); err != nil {
		return badBody(c)
	}
	v.ID = ""
	if err := h.vendors.Create(c.UserContext(), &v); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (h *ProcurementHandler) ListVendors(c *fiber.Ctx) error {
	vendors, err := h.vendors.List(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(vendors)
}

func (h *ProcurementHandler) CreateRequest(c *fiber.Ctx) error {
	var r entity.Request
	if err := c.BodyParser(&r); err != nil {
		return badBody(c)
	}
	// New requests always start as drafts with no addressees.
	r.ID, r.Status, r.SentTo = "", entity.StatusDraft, nil
	if err := h.requests.Create(c.UserContext(), &r); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (h *ProcurementHandler) ListRequests(c *fiber.Ctx) error {
	requests, err := h.requests.List(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(requests)
}

func (h *ProcurementHandler) GetRequest(c *fiber.Ctx) error {
	r, err := h.requests.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(r)
}

type sendRequestBody struct {
	VendorIDs []string `json:"vendorIds"`
}

// SendRequest records the addressees and moves a draft to sent. Delivering the
// outbound mail is left to the caller, who gets the subject line vendors must quote back.
func (h *ProcurementHandler) SendRequest(c *fiber.Ctx) error {
	var body sendRequestBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}
	if len(body.VendorIDs) == 0 {
		return writeError(c, fmt.Errorf("%w: vendorIds must not be empty", entity.ErrInvalidRequest))
	}

	ctx := c.UserContext()
	req, err := h.requests.Get(ctx, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	ids := make([]string, 0, len(body.VendorIDs))
	for _, id := range body.VendorIDs {
		v, err := h.vendors.Get(ctx, id)
		if err != nil {
			return writeError(c, err)
		}
		ids = append(ids, v.ID)
	}

	if err := h.requests.SetStatus(ctx, req.ID, entity.StatusSent); err != nil {
		return writeError(c, err)
	}
	if err := h.requests.SetAddressees(ctx, req.ID, ids); err != nil {
		return writeError(c, err)
	}

	req, err = h.requests.Get(ctx, req.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"rfp":     req,
		"subject": entity.ProposalSubject(req),
	})
}

type receiveProposalBody struct {
	RequestID string `json:"rfpId"`
	VendorID  string `json:"vendorId"`
	EmailBody string `json:"emailBody"`
}

// ReceiveProposal is the manual entry point into the ingestion pipeline.
func (h *ProcurementHandler) ReceiveProposal(c *fiber.Ctx) error {
	var body receiveProposalBody
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}
	if body.RequestID == "" || body.VendorID == "" || strings.TrimSpace(body.EmailBody) == "" {
		return writeError(c, fmt.Errorf("%w: rfpId, vendorId and emailBody are required", entity.ErrInvalidRequest))
	}

	p, err := h.ingestor.Submit(c.UserContext(), body.RequestID, body.VendorID, body.EmailBody)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProcurementHandler) CompareProposals(c *fiber.Ctx) error {
	cmp, err := h.scoring.Compare(c.UserContext(), c.Params("id"), usecase.CompareOptions{
		Rescore: c.QueryBool("rescore"),
	})
	if err != nil {
		return writeError(c, err)
	}
	c.Set("X-Procurement-Rescored", fmt.Sprint(cmp.Rescored))
	return c.JSON(cmp)
}

func (h *ProcurementHandler) ExportProposals(c *fiber.Ctx) error {
	cmp, err := h.scoring.Compare(c.UserContext(), c.Params("id"), usecase.CompareOptions{})
	if err != nil {
		return writeError(c, err)
	}
	var recommendation string
	if cmp.Recommendation != nil {
		recommendation = *cmp.Recommendation
	}

	b, err := export.ComparisonWorkbook(cmp.Request, cmp.Proposals, recommendation)
	if err != nil {
		return writeError(c, err)
	}
	c.Attachment(fmt.Sprintf("rfp-%s-proposals.xlsx", cmp.Request.ID))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(b)
}

func (h *ProcurementHandler) ScanMailbox(c *fiber.Ctx) error {
	if h.scanner == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "mailbox polling is not configured"})
	}
	report, err := h.scanner.Scan(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (h *ProcurementHandler) SearchReplies(c *fiber.Ctx) error {
	if h.archive == nil || h.embedder == nil {
		return writeError(c, entity.ErrArchiveDisabled)
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return writeError(c, fmt.Errorf("%w: q is required", entity.ErrInvalidRequest))
	}
	requestID := strings.ToLower(strings.TrimSpace(c.Query("rfpId")))
	if requestID != "" && !entity.IsValidID(requestID) {
		return writeError(c, fmt.Errorf("%w: malformed rfpId", entity.ErrInvalidRequest))
	}
	limit := c.QueryInt("limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	ctx := c.UserContext()
	vector, err := h.embedder.CreateEmbedding(ctx, q)
	if err != nil {
		return writeError(c, err)
	}
	replies, err := h.archive.Search(ctx, vector, requestID, uint64(limit))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(replies)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
}

// writeError maps domain errors to HTTP status codes. Oracle and unexpected failures
// get a generic message; the cause is only logged.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, entity.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrRequestNotFound),
		errors.Is(err, entity.ErrVendorNotFound),
		errors.Is(err, entity.ErrProposalNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrDuplicateProposal),
		errors.Is(err, entity.ErrVendorExists),
		errors.Is(err, entity.ErrStatusRegression),
		errors.Is(err, entity.ErrScanInProgress),
		errors.Is(err, entity.ErrScanLeaseLost):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrArchiveDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, entity.ErrExtraction):
		log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not read the proposal, try again later"})
	case errors.Is(err, entity.ErrScoring):
		log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not score the proposals, try again later"})
	case errors.Is(err, entity.ErrTransport):
		log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "mailbox is unreachable"})
	}
	log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
