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

type VendorStore struct {
	db *gorm.DB
}

func NewVendorStore(db *gorm.DB) *VendorStore {
	return &VendorStore{db: db}
}

func (s *VendorStore) List(ctx context.Context) ([]entity.Vendor, error) {
	var rows []vendorModel
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Vendor, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

func (s *VendorStore) FindByEmail(ctx context.Context, email string) (*entity.Vendor, error) {
	return s.first(ctx, "email = ?", entity.NormalizeEmail(email))
}

func (s *VendorStore) Get(ctx context.Context, id string) (*entity.Vendor, error) {
	return s.first(ctx, "id = ?", strings.ToLower(id))
}

func (s *VendorStore) first(ctx context.Context, query string, arg any) (*entity.Vendor, error) {
	var row vendorModel
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrVendorNotFound
	}
	if err != nil {
		return nil, err
	}
	v := row.toEntity()
	return &v, nil
}

// Create assigns an id when the vendor has none and stores the email normalized.
func (s *VendorStore) Create(ctx context.Context, v *entity.Vendor) error {
	v.Email = entity.NormalizeEmail(v.Email)
	if err := v.Validate(); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = entity.NewID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	row := vendorModel{
		ID:        v.ID,
		Name:      strings.TrimSpace(v.Name),
		Email:     v.Email,
		Phone:     v.Phone,
		Notes:     v.Notes,
		CreatedAt: v.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errorsLikeUnique(err) {
			return fmt.Errorf("%w: %s", entity.ErrVendorExists, v.Email)
		}
		return err
	}
	return nil
}
