package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	"github.com/smallbiznis/ledgerline/pkg/db/option"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
	"github.com/smallbiznis/ledgerline/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[customerdomain.Customer]
}

func NewService(p Params) customerdomain.Service {
	return &Service{
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[customerdomain.Customer](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return customerdomain.Customer{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return customerdomain.Customer{}, customerdomain.ErrInvalidName
	}
	if req.CreditLimit.IsNegative() {
		return customerdomain.Customer{}, customerdomain.ErrInvalidCreditLimit
	}

	now := time.Now().UTC()
	customer := customerdomain.Customer{
		ID:          s.genID.Generate(),
		CompanyID:   companyID,
		Name:        name,
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		CreditLimit: req.CreditLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, &customer); err != nil {
		return customerdomain.Customer{}, err
	}

	s.log.Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("company_id", companyID.String()),
	)
	return customer, nil
}

func (s *Service) Update(ctx context.Context, req customerdomain.UpdateCustomerRequest) (customerdomain.Customer, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return customerdomain.Customer{}, err
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return customerdomain.Customer{}, customerdomain.ErrInvalidID
	}

	existing, err := s.repo.FindOne(ctx, &customerdomain.Customer{CompanyID: companyID, ID: customerID})
	if err != nil {
		return customerdomain.Customer{}, err
	}
	if existing == nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return customerdomain.Customer{}, customerdomain.ErrInvalidName
		}
		updates["name"] = name
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return customerdomain.Customer{}, customerdomain.ErrInvalidCreditLimit
		}
		updates["credit_limit"] = *req.CreditLimit
	}

	if err := s.repo.Update(ctx, customerID.String(), updates); err != nil {
		return customerdomain.Customer{}, err
	}

	customer, err := s.repo.FindOne(ctx, &customerdomain.Customer{CompanyID: companyID, ID: customerID})
	if err != nil {
		return customerdomain.Customer{}, err
	}
	if customer == nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) List(ctx context.Context, req customerdomain.ListCustomerRequest) (customerdomain.ListCustomerResponse, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return customerdomain.ListCustomerResponse{}, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}
	if size > 250 {
		size = 250
	}

	filter := customerdomain.Customer{
		CompanyID: companyID,
		Name:      req.Name,
		Email:     req.Email,
	}
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			Allow: map[string]bool{"id": true, "created_at": true},
			Field: "id",
			Desc:  true,
		}),
		option.ApplyPagination(pagination.Pagination{PageSize: size}),
	}
	if req.CreatedFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "created_at", Operator: option.GTE, Value: *req.CreatedFrom,
		}))
	}
	if req.CreatedTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "created_at", Operator: option.LTE, Value: *req.CreatedTo,
		}))
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return customerdomain.ListCustomerResponse{}, customerdomain.ErrInvalidID
		}
		if cursor.ID != "" {
			opts = append(opts, option.ApplyOperator(option.Condition{
				Field: "id", Operator: option.LT, Value: cursor.ID,
			}))
		}
	}

	customers, err := s.repo.Find(ctx, &filter, opts...)
	if err != nil {
		return customerdomain.ListCustomerResponse{}, err
	}

	customers, pageInfo := pagination.BuildCursorPageInfo(customers, size, func(c *customerdomain.Customer) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: c.ID.String()})
		return token
	})

	out := make([]customerdomain.Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, *c)
	}
	return customerdomain.ListCustomerResponse{PageInfo: *pageInfo, Customers: out}, nil
}

func (s *Service) GetByID(ctx context.Context, req customerdomain.GetCustomerRequest) (customerdomain.Customer, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return customerdomain.Customer{}, err
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return customerdomain.Customer{}, customerdomain.ErrInvalidID
	}

	customer, err := s.repo.FindOne(ctx, &customerdomain.Customer{CompanyID: companyID, ID: customerID})
	if err != nil {
		return customerdomain.Customer{}, err
	}
	if customer == nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, customerdomain.ErrInvalidCompany
	}
	return companyID, nil
}
