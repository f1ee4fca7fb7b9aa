package store

import (
	"context"
	"errors"
	"fmt"
	"procurement-core/internal/domain/entity"
	"strings"
	"time"

	"gorm.io/gorm"
)

type RequestStore struct {
	db *gorm.DB
}

func NewRequestStore(db *gorm.DB) *RequestStore {
	return &RequestStore{db: db}
}

func (s *RequestStore) Get(ctx context.Context, id string) (*entity.Request, error) {
	row, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	r := row.toEntity()
	return &r, nil
}

func (s *RequestStore) List(ctx context.Context) ([]entity.Request, error) {
	var rows []requestModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// Create stores a new request. Requests always start as drafts unless a valid status is given.
func (s *RequestStore) Create(ctx context.Context, r *entity.Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = entity.NewID()
	}
	if r.Status == "" {
		r.Status = entity.StatusDraft
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.LineItems == nil {
		r.LineItems = []entity.LineItem{}
	}
	if r.SentTo == nil {
		r.SentTo = []string{}
	}

	row := requestModel{
		ID:                   r.ID,
		Title:                strings.TrimSpace(r.Title),
		Description:          r.Description,
		Budget:               r.Budget,
		DeliveryDeadlineDays: r.DeliveryDeadlineDays,
		PaymentTerms:         r.PaymentTerms,
		LineItems:            r.LineItems,
		Status:               string(r.Status),
		SentTo:               r.SentTo,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// SetStatus moves the request forward. Setting the current status again is a no-op;
// anything else that is not the next step fails with entity.ErrStatusRegression.
func (s *RequestStore) SetStatus(ctx context.Context, id string, status entity.RequestStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", entity.ErrInvalidRequest, status)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, id)
		if err != nil {
			return err
		}
		current := entity.RequestStatus(row.Status)
		if current == status {
			return nil
		}
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", entity.ErrStatusRegression, current, status)
		}
		return tx.Model(&requestModel{}).
			Where("id = ? AND status = ?", row.ID, row.Status).
			Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()}).Error
	})
}

func (s *RequestStore) SetAddressees(ctx context.Context, id string, vendorIDs []string) error {
	res := s.db.WithContext(ctx).Model(&requestModel{ID: strings.ToLower(id)}).
		Select("sent_to", "updated_at").
		Updates(requestModel{SentTo: nonNil(vendorIDs), UpdatedAt: time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entity.ErrRequestNotFound
	}
	return nil
}

func (s *RequestStore) load(db *gorm.DB, id string) (*requestModel, error) {
	var row requestModel
	err := db.Where("id = ?", strings.ToLower(id)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
