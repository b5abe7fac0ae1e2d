package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, companyID *snowflake.ID, action, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	resolved := snowflake.ID(0)
	if companyID != nil {
		resolved = *companyID
	} else if fromCtx, ok := companyctx.CompanyIDFromContext(ctx); ok {
		resolved = fromCtx
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		CompanyID:  resolved,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(targetID),
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidCompany
	}

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	size := req.PageSize
	if size <= 0 {
		size = 50
	}

	stmt := s.db.WithContext(ctx).
		Model(&auditdomain.AuditLog{}).
		Where("company_id = ?", companyID)
	if req.Action != "" {
		stmt = stmt.Where("action = ?", req.Action)
	}
	if req.TargetType != "" {
		stmt = stmt.Where("target_type = ?", req.TargetType)
	}
	if req.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", *req.StartAt)
	}
	if req.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", *req.EndAt)
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		if cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	var logs []*auditdomain.AuditLog
	if err := stmt.Order("id desc").Limit(size + 1).Find(&logs).Error; err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs, pageInfo := pagination.BuildCursorPageInfo(logs, size, func(l *auditdomain.AuditLog) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: l.ID.String()})
		return token
	})

	out := make([]auditdomain.AuditLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, *l)
	}
	return auditdomain.ListAuditLogResponse{PageInfo: *pageInfo, Logs: out}, nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
