package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	Name        string
	Email       string
	Phone       string
	CreditLimit decimal.Decimal
}

type UpdateCustomerRequest struct {
	ID          string
	Name        *string
	Email       *string
	Phone       *string
	CreditLimit *decimal.Decimal
}

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int
	Name        string
	Email       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type GetCustomerRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
}

var (
	ErrInvalidCompany     = errors.New("invalid_company")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidCreditLimit = errors.New("invalid_credit_limit")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
