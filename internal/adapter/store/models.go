package store

import (
	"encoding/json"
	"procurement-core/internal/domain/entity"
	"time"
)

type vendorModel struct {
	ID        string    `gorm:"primaryKey;size:24"`
	Name      string    `gorm:"size:255;not null"`
	Email     string    `gorm:"size:320;uniqueIndex;not null"`
	Phone     string    `gorm:"size:64"`
	Notes     string    `gorm:"type:text"`
	CreatedAt time.Time
}

func (vendorModel) TableName() string { return "vendors" }

func (m vendorModel) toEntity() entity.Vendor {
	return entity.Vendor{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

type requestModel struct {
	ID                   string            `gorm:"primaryKey;size:24"`
	Title                string            `gorm:"size:255;not null"`
	Description          string            `gorm:"type:text"`
	Budget               float64           `gorm:"not null;default:0"`
	DeliveryDeadlineDays int               `gorm:"not null;default:0"`
	PaymentTerms         string            `gorm:"size:255"`
	LineItems            []entity.LineItem `gorm:"serializer:json;type:text"`
	Status               string            `gorm:"size:32;not null;index"`
	SentTo               []string          `gorm:"serializer:json;type:text"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (requestModel) TableName() string { return "requests" }

func (m requestModel) toEntity() entity.Request {
	return entity.Request{
		ID:                   m.ID,
		Title:                m.Title,
		Description:          m.Description,
		Budget:               m.Budget,
		DeliveryDeadlineDays: m.DeliveryDeadlineDays,
		PaymentTerms:         m.PaymentTerms,
		LineItems:            nonNil(m.LineItems),
		Status:               entity.RequestStatus(m.Status),
		SentTo:               nonNil(m.SentTo),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// proposalModel carries the (request, vendor) uniqueness that makes Create an insert-if-absent.
type proposalModel struct {
	ID             string   `gorm:"primaryKey;size:24"`
	RequestID      string   `gorm:"size:24;not null;uniqueIndex:idx_proposal_request_vendor"`
	VendorID       string   `gorm:"size:24;not null;uniqueIndex:idx_proposal_request_vendor"`
	VendorName     string   `gorm:"->;-:migration"`
	TotalPrice     float64  `gorm:"not null;default:0"`
	Currency       string   `gorm:"size:8;not null"`
	DeliveryDays   int      `gorm:"not null;default:0"`
	PaymentTerms   string   `gorm:"size:255"`
	WarrantyMonths int      `gorm:"not null;default:0"`
	RawBody        string   `gorm:"type:text"`
	Extraction     string   `gorm:"type:text"`
	AIScore        *float64 `gorm:"column:ai_score"`
	AISummary      string   `gorm:"column:ai_summary;type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (proposalModel) TableName() string { return "proposals" }

func proposalFromEntity(p *entity.Proposal) proposalModel {
	return proposalModel{
		ID:             p.ID,
		RequestID:      p.RequestID,
		VendorID:       p.VendorID,
		TotalPrice:     p.TotalPrice,
		Currency:       p.Currency,
		DeliveryDays:   p.DeliveryDays,
		PaymentTerms:   p.PaymentTerms,
		WarrantyMonths: p.WarrantyMonths,
		RawBody:        p.RawBody,
		Extraction:     string(p.Extraction),
		AIScore:        p.AIScore,
		AISummary:      p.AISummary,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (m proposalModel) toEntity() entity.Proposal {
	p := entity.Proposal{
		ID:             m.ID,
		RequestID:      m.RequestID,
		VendorID:       m.VendorID,
		VendorName:     m.VendorName,
		TotalPrice:     m.TotalPrice,
		Currency:       m.Currency,
		DeliveryDays:   m.DeliveryDays,
		PaymentTerms:   m.PaymentTerms,
		WarrantyMonths: m.WarrantyMonths,
		RawBody:        m.RawBody,
		AIScore:        m.AIScore,
		AISummary:      m.AISummary,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Extraction != "" {
		p.Extraction = json.RawMessage(m.Extraction)
	}
	return p
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
