package entity

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeEmail is the canonical form used to store and compare contact addresses.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (v *Vendor) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: vendor name is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(v.Email); err != nil {
		return fmt.Errorf("%w: invalid vendor email %q", ErrInvalidRequest, v.Email)
	}
	return nil
}
