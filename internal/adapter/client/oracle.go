package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
)

// ProposalOracle turns vendor replies and proposal sets into structured data by prompting
// a language model and decoding the JSON it answers with.
type ProposalOracle struct {
	provider repository.AIProvider
}

func NewProposalOracle(provider repository.AIProvider) *ProposalOracle {
	return &ProposalOracle{provider: provider}
}

const extractInstruction = `You are an AI that extracts structured proposal information from vendor emails.
Output ONLY valid JSON with this structure (no markdown, no code blocks, no backticks):
{
  "totalPrice": number,
  "currency": "ISO 4217 code, e.g. USD",
  "deliveryDays": number,
  "paymentTerms": "string",
  "warrantyMonths": number,
  "notes": "string"
}
Extract pricing, delivery timeline, warranty and payment terms. If a value is missing, use 0 or an empty string.`

const scoreInstruction = `You are a procurement expert AI that evaluates vendor proposals and provides recommendations.
Evaluate each proposal on:
- Price competitiveness (within budget?)
- Delivery timeline (meets deadline?)
- Warranty coverage
- Payment terms
- Overall value
Output ONLY valid JSON (no markdown, no extra text):
{
  "scores": [
    {"vendorId": "string (must match proposal vendorId)", "score": number (0-10), "reasoning": "brief explanation"}
  ],
  "recommendation": "Overall recommendation paragraph explaining which vendor is best and why"
}`

// requestContext is the part of a request the model needs to interpret a reply.
type requestContext struct {
	Title            string            `json:"title"`
	Description      string            `json:"descriptionText,omitempty"`
	Budget           float64           `json:"budget"`
	DeliveryDeadline int               `json:"deliveryDeadline"`
	PaymentTerms     string            `json:"paymentTerms,omitempty"`
	LineItems        []entity.LineItem `json:"lineItems"`
}

func contextOf(req *entity.Request) requestContext {
	return requestContext{
		Title:            req.Title,
		Description:      req.Description,
		Budget:           req.Budget,
		DeliveryDeadline: req.DeliveryDeadlineDays,
		PaymentTerms:     req.PaymentTerms,
		LineItems:        req.LineItems,
	}
}

func (o *ProposalOracle) Extract(ctx context.Context, rawText string, req *entity.Request) (*entity.Extraction, error) {
	rc, err := json.Marshal(contextOf(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrExtraction, err)
	}
	prompt := fmt.Sprintf("%s\n\nRFP Context: %s\n\nVendor Email Response:\n%s", extractInstruction, rc, rawText)

	resp, err := o.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrExtraction, err)
	}

	parsed, err := parseJSON[extractionDoc](resp.Content)
	if err != nil {
		log.Printf("[ORACLE] unparsable extraction from %s: %v", resp.Model, err)
		return nil, fmt.Errorf("%w: %v", entity.ErrExtraction, err)
	}
	if parsed.TotalPrice == nil {
		return nil, fmt.Errorf("%w: response has no totalPrice", entity.ErrExtraction)
	}

	return &entity.Extraction{
		TotalPrice:     float64(*parsed.TotalPrice),
		Currency:       strings.ToUpper(strings.TrimSpace(parsed.Currency)),
		DeliveryDays:   int(parsed.DeliveryDays),
		PaymentTerms:   strings.TrimSpace(parsed.PaymentTerms),
		WarrantyMonths: int(parsed.WarrantyMonths),
		Notes:          strings.TrimSpace(parsed.Notes),
	}, nil
}

func (o *ProposalOracle) Score(ctx context.Context, req *entity.Request, candidates []entity.ScoreCandidate) (*entity.ScoreResult, error) {
	rc, err := json.Marshal(contextOf(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrScoring, err)
	}
	pc, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrScoring, err)
	}
	prompt := fmt.Sprintf("%s\n\nRFP Requirements:\n%s\n\nVendor Proposals:\n%s", scoreInstruction, rc, pc)

	resp, err := o.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrScoring, err)
	}

	parsed, err := parseJSON[scoreDoc](resp.Content)
	if err != nil {
		log.Printf("[ORACLE] unparsable comparison from %s: %v", resp.Model, err)
		return nil, fmt.Errorf("%w: %v", entity.ErrScoring, err)
	}
	if parsed.Scores == nil {
		return nil, fmt.Errorf("%w: response has no scores", entity.ErrScoring)
	}

	result := &entity.ScoreResult{Recommendation: strings.TrimSpace(parsed.Recommendation)}
	for _, s := range parsed.Scores {
		if s.VendorID == "" {
			continue
		}
		result.Scores = append(result.Scores, entity.VendorScore{
			VendorID:  s.VendorID,
			Score:     float64(s.Score),
			Reasoning: strings.TrimSpace(s.Reasoning),
		})
	}
	return result, nil
}

type extractionDoc struct {
	TotalPrice     *flexNumber `json:"totalPrice"`
	Currency       string      `json:"currency"`
	DeliveryDays   flexNumber  `json:"deliveryDays"`
	PaymentTerms   string      `json:"paymentTerms"`
	WarrantyMonths flexNumber  `json:"warrantyMonths"`
	Notes          string      `json:"notes"`
}

type scoreDoc struct {
	Scores []struct {
		VendorID  string     `json:"vendorId"`
		Score     flexNumber `json:"score"`
		Reasoning string     `json:"reasoning"`
	} `json:"scores"`
	Recommendation string `json:"recommendation"`
}

// flexNumber accepts JSON numbers and the string forms models tend to produce
// instead ("42,000", "$1,250.50", "30 days").
type flexNumber float64

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexNumber(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if string(data) == "null" {
			*f = 0
			return nil
		}
		return fmt.Errorf("expected a number, got %s", data)
	}
	m := leadingNumber.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return err
	}
	*f = flexNumber(v)
	return nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// parseJSON decodes model output, trying the raw text, then a fenced code block,
// then the outermost {...} span.
func parseJSON[T any](content string) (T, error) {
	var result T

	err1 := json.Unmarshal([]byte(strings.TrimSpace(content)), &result)
	if err1 == nil {
		return result, nil
	}

	if m := fencedJSON.FindStringSubmatch(content); len(m) > 1 {
		if err := json.Unmarshal([]byte(m[1]), &result); err == nil {
			return result, nil
		}
	}

	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return result, errors.New("no JSON object found in response")
	}
	err2 := json.Unmarshal([]byte(content[start:end+1]), &result)
	if err2 == nil {
		return result, nil
	}

	return result, fmt.Errorf("failed to parse JSON response: %w", errors.Join(
		fmt.Errorf("direct parse: %w", err1),
		fmt.Errorf("object extraction: %w", err2),
	))
}
