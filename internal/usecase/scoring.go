package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
	"sort"

	"golang.org/x/sync/singleflight"
)

// EvaluatedRecommendation is returned when every proposal already carries a score.
const EvaluatedRecommendation = "Proposals have been evaluated. See scores and reasoning below."

type CompareOptions struct {
	// Rescore asks the oracle again even when every proposal is already scored.
	Rescore bool
}

type Comparison struct {
	Request        *entity.Request   `json:"rfp"`
	Proposals      []entity.Proposal `json:"proposals"`
	Recommendation *string           `json:"recommendation"`
	Rescored       bool              `json:"rescored"`
}

// ScoringOrchestrator scores all proposals of a request in one oracle call and
// keeps the scores on the proposals, so repeat reads are free.
type ScoringOrchestrator struct {
	requests  repository.RequestStore
	proposals repository.ProposalStore
	oracle    repository.Oracle
	group     singleflight.Group
}

func NewScoringOrchestrator(requests repository.RequestStore, proposals repository.ProposalStore, oracle repository.Oracle) *ScoringOrchestrator {
	return &ScoringOrchestrator{requests: requests, proposals: proposals, oracle: oracle}
}

func (s *ScoringOrchestrator) Compare(ctx context.Context, requestID string, opts CompareOptions) (*Comparison, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	proposals, err := s.proposals.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	if len(proposals) == 0 {
		return &Comparison{Request: req, Proposals: []entity.Proposal{}}, nil
	}

	if !opts.Rescore && allScored(proposals) {
		rec := EvaluatedRecommendation
		rankProposals(proposals)
		return &Comparison{Request: req, Proposals: proposals, Recommendation: &rec}, nil
	}

	// Concurrent readers of the same request share one oracle call.
	v, err, _ := s.group.Do(req.ID, func() (any, error) {
		return s.score(context.WithoutCancel(ctx), req, proposals)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Comparison), nil
}

func (s *ScoringOrchestrator) score(ctx context.Context, req *entity.Request, proposals []entity.Proposal) (*Comparison, error) {
	candidates := make([]entity.ScoreCandidate, 0, len(proposals))
	byVendor := make(map[string]string, len(proposals))
	for _, p := range proposals {
		candidates = append(candidates, entity.ScoreCandidate{
			VendorID:       p.VendorID,
			VendorName:     p.VendorName,
			TotalPrice:     p.TotalPrice,
			Currency:       p.Currency,
			DeliveryDays:   p.DeliveryDays,
			WarrantyMonths: p.WarrantyMonths,
			PaymentTerms:   p.PaymentTerms,
		})
		byVendor[p.VendorID] = p.ID
	}

	log.Printf("[SCORING] scoring %d proposal(s) for request=%s", len(candidates), req.ID)
	result, err := s.oracle.Score(ctx, req, candidates)
	if err != nil {
		if !errors.Is(err, entity.ErrScoring) {
			err = fmt.Errorf("%w: %v", entity.ErrScoring, err)
		}
		return nil, err
	}

	updates := make([]entity.ScoreUpdate, 0, len(result.Scores))
	for _, vs := range result.Scores {
		proposalID, ok := byVendor[vs.VendorID]
		if !ok {
			log.Printf("[SCORING] ignoring score for unknown vendor=%s on request=%s", vs.VendorID, req.ID)
			continue
		}
		updates = append(updates, entity.ScoreUpdate{
			ProposalID: proposalID,
			Score:      entity.ClampScore(vs.Score),
			Rationale:  vs.Reasoning,
		})
	}
	if err := s.proposals.UpdateScores(ctx, updates); err != nil {
		return nil, fmt.Errorf("save scores for request %s: %w", req.ID, err)
	}

	refreshed, err := s.proposals.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	rankProposals(refreshed)

	rec := result.Recommendation
	return &Comparison{Request: req, Proposals: refreshed, Recommendation: &rec, Rescored: true}, nil
}

func allScored(proposals []entity.Proposal) bool {
	for i := range proposals {
		if !proposals[i].Scored() {
			return false
		}
	}
	return true
}

// rankProposals orders by score descending, unscored last, cheaper first on ties.
func rankProposals(proposals []entity.Proposal) {
	sort.SliceStable(proposals, func(i, j int) bool {
		a, b := proposals[i], proposals[j]
		if a.Scored() != b.Scored() {
			return a.Scored()
		}
		if a.Scored() && *a.AIScore != *b.AIScore {
			return *a.AIScore > *b.AIScore
		}
		return a.TotalPrice < b.TotalPrice
	})
}
