package domain

import (
	"strings"
	"time"

	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	MediaURL    string    `json:"media_url"`
	Rating      float64   `json:"rating"`
	NumReviews  int       `json:"num_reviews"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validation("name is required")
	}
	if p.PriceCents < 0 {
		return apperr.Validation("price must not be negative")
	}
	if p.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

// Patch holds a partial update. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Stock       *int
	Category    *string
	MediaURL    *string
}

func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return apperr.Validation("name must not be empty")
	}
	if p.PriceCents != nil && *p.PriceCents < 0 {
		return apperr.Validation("price must not be negative")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

func (p Patch) Apply(to Product) Product {
	if p.Name != nil {
		to.Name = *p.Name
	}
	if p.Description != nil {
		to.Description = *p.Description
	}
	if p.PriceCents != nil {
		to.PriceCents = *p.PriceCents
	}
	if p.Stock != nil {
		to.Stock = *p.Stock
	}
	if p.Category != nil {
		to.Category = *p.Category
	}
	if p.MediaURL != nil {
		to.MediaURL = *p.MediaURL
	}
	return to
}
