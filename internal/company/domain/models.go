// Package domain contains persistence models for companies (tenants).
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Company is the tenant every other record is scoped to. The company row is
// also the lock anchor that serializes invoice numbering.
type Company struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"not null" json:"name"`
	InvoicePrefix string       `gorm:"type:text;not null;default:'INV'" json:"invoice_prefix"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Company) TableName() string { return "companies" }

type CreateCompanyRequest struct {
	Name          string
	InvoicePrefix string
}

type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (Company, error)
	GetByID(ctx context.Context, id string) (Company, error)
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("not_found")
)
