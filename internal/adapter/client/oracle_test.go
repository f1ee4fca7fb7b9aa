package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"procurement-core/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedProvider struct {
	content    string
	err        error
	lastPrompt string
}

func (p *cannedProvider) Generate(_ context.Context, prompt string) (*entity.Generation, error) {
	p.lastPrompt = prompt
	if p.err != nil {
		return nil, p.err
	}
	return &entity.Generation{Content: p.content, Model: "canned"}, nil
}

func testRequest() *entity.Request {
	return &entity.Request{
		ID:                   "0123456789abcdef01234567",
		Title:                "Office chairs",
		Budget:               12000,
		DeliveryDeadlineDays: 14,
		PaymentTerms:         "net 45",
		LineItems:            []entity.LineItem{{ItemType: "chair", Quantity: 40, Specs: "ergonomic"}},
	}
}

func TestProposalOracle_Extract_PlainJSON(t *testing.T) {
	p := &cannedProvider{content: `{"totalPrice": 11500, "currency": "usd", "deliveryDays": 10, "paymentTerms": "net 30", "warrantyMonths": 12, "notes": "free shipping"}`}
	o := NewProposalOracle(p)

	ex, err := o.Extract(context.Background(), "We quote 11,500 USD.", testRequest())

	require.NoError(t, err)
	assert.Equal(t, &entity.Extraction{
		TotalPrice:     11500,
		Currency:       "USD",
		DeliveryDays:   10,
		PaymentTerms:   "net 30",
		WarrantyMonths: 12,
		Notes:          "free shipping",
	}, ex)
	assert.Contains(t, p.lastPrompt, "We quote 11,500 USD.")
	assert.Contains(t, p.lastPrompt, `"title":"Office chairs"`)
	assert.Contains(t, p.lastPrompt, `"deliveryDeadline":14`)
}

func TestProposalOracle_Extract_FencedAndStringNumbers(t *testing.T) {
	p := &cannedProvider{content: "Sure! Here it is:\n```json\n{\"totalPrice\": \"$11,500.50\", \"deliveryDays\": \"10 days\", \"warrantyMonths\": null}\n```"}
	o := NewProposalOracle(p)

	ex, err := o.Extract(context.Background(), "body", testRequest())

	require.NoError(t, err)
	assert.Equal(t, 11500.50, ex.TotalPrice)
	assert.Equal(t, 10, ex.DeliveryDays)
	assert.Zero(t, ex.WarrantyMonths)
	assert.Empty(t, ex.Currency)
}

func TestProposalOracle_Extract_EmbeddedObject(t *testing.T) {
	p := &cannedProvider{content: `The proposal: {"totalPrice": 900} -- end`}
	o := NewProposalOracle(p)

	ex, err := o.Extract(context.Background(), "", testRequest())

	require.NoError(t, err)
	assert.Equal(t, 900.0, ex.TotalPrice)
}

func TestProposalOracle_Extract_Failures(t *testing.T) {
	cases := map[string]*cannedProvider{
		"no json":       {content: "I could not find a price."},
		"missing price": {content: `{"currency": "USD"}`},
		"broken json":   {content: `{"totalPrice": 12,`},
		"provider err":  {err: errors.New("503 unavailable")},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewProposalOracle(p).Extract(context.Background(), "body", testRequest())
			assert.ErrorIs(t, err, entity.ErrExtraction)
		})
	}
}

func TestProposalOracle_Score(t *testing.T) {
	p := &cannedProvider{content: `{"scores":[{"vendorId":"v1","score":8.5,"reasoning":" cheapest "},{"vendorId":"","score":3},{"vendorId":"v2","score":"7","reasoning":"slow"}],"recommendation":"Pick v1."}`}
	o := NewProposalOracle(p)

	res, err := o.Score(context.Background(), testRequest(), []entity.ScoreCandidate{
		{VendorID: "v1", VendorName: "Acme", TotalPrice: 10000},
		{VendorID: "v2", VendorName: "Globex", TotalPrice: 9000},
	})

	require.NoError(t, err)
	assert.Equal(t, "Pick v1.", res.Recommendation)
	assert.Equal(t, []entity.VendorScore{
		{VendorID: "v1", Score: 8.5, Reasoning: "cheapest"},
		{VendorID: "v2", Score: 7, Reasoning: "slow"},
	}, res.Scores)
	assert.True(t, strings.Contains(p.lastPrompt, `"vendorName":"Globex"`))
}

func TestProposalOracle_Score_Failures(t *testing.T) {
	for _, content := range []string{"no idea", `{"recommendation": "x"}`} {
		_, err := NewProposalOracle(&cannedProvider{content: content}).Score(context.Background(), testRequest(), nil)
		assert.ErrorIs(t, err, entity.ErrScoring)
	}
}

func TestParseJSON_PrefersDirect(t *testing.T) {
	got, err := parseJSON[map[string]int](` {"a": 1} `)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, got)
}
