package store

import (
	"context"
	"fmt"
	"procurement-core/internal/domain/entity"
	"time"

	"gorm.io/gorm"
)

type ProposalStore struct {
	db *gorm.DB
}

func NewProposalStore(db *gorm.DB) *ProposalStore {
	return &ProposalStore{db: db}
}

func (s *ProposalStore) Exists(ctx context.Context, requestID, vendorID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&proposalModel{}).
		Where("request_id = ? AND vendor_id = ?", requestID, vendorID).
		Count(&n).Error
	return n > 0, err
}

// Create inserts the proposal. A second proposal for the same (request, vendor)
// fails with entity.ErrDuplicateProposal.
func (s *ProposalStore) Create(ctx context.Context, p *entity.Proposal) error {
	if p.ID == "" {
		p.ID = entity.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
	}
	row := proposalFromEntity(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errorsLikeUnique(err) {
			return fmt.Errorf("%w: request=%s vendor=%s", entity.ErrDuplicateProposal, p.RequestID, p.VendorID)
		}
		return err
	}
	return nil
}

// ListByRequest returns the request's proposals, oldest first, with vendor names filled in.
func (s *ProposalStore) ListByRequest(ctx context.Context, requestID string) ([]entity.Proposal, error) {
	var rows []proposalModel
	err := s.db.WithContext(ctx).
		Table("proposals").
		Select("proposals.*, vendors.name AS vendor_name").
		Joins("LEFT JOIN vendors ON vendors.id = proposals.vendor_id").
		Where("proposals.request_id = ?", requestID).
		Order("proposals.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.Proposal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// UpdateScores touches only the score fields, in one transaction. A missing
// proposal rolls back the whole batch with entity.ErrProposalNotFound.
func (s *ProposalStore) UpdateScores(ctx context.Context, updates []entity.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&proposalModel{}).
				Where("id = ?", u.ProposalID).
				Updates(map[string]any{
					"ai_score":   u.Score,
					"ai_summary": u.Rationale,
					"updated_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("update score for proposal %s: %w", u.ProposalID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", entity.ErrProposalNotFound, u.ProposalID)
			}
		}
		return nil
	})
}
