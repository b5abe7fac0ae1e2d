package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/ledgerline/internal/company/domain"
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
	repo  repository.Repository[companydomain.Company]
}

func NewService(p Params) companydomain.Service {
	return &Service{
		log:   p.Log.Named("company.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[companydomain.Company](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req companydomain.CreateCompanyRequest) (companydomain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return companydomain.Company{}, companydomain.ErrInvalidName
	}

	prefix := strings.ToUpper(strings.TrimSpace(req.InvoicePrefix))
	if prefix == "" {
		prefix = "INV"
	}

	now := time.Now().UTC()
	company := companydomain.Company{
		ID:            s.genID.Generate(),
		Name:          name,
		InvoicePrefix: prefix,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, &company); err != nil {
		return companydomain.Company{}, err
	}

	s.log.Info("company created", zap.String("company_id", company.ID.String()), zap.String("name", name))
	return company, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (companydomain.Company, error) {
	companyID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return companydomain.Company{}, companydomain.ErrInvalidID
	}

	company, err := s.repo.FindOne(ctx, &companydomain.Company{ID: companyID})
	if err != nil {
		return companydomain.Company{}, err
	}
	if company == nil {
		return companydomain.Company{}, companydomain.ErrNotFound
	}
	return *company, nil
}
