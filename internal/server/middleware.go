package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
)

const HeaderCompany = "X-Company-ID"

// CompanyContext resolves the tenant for every request. The X-Company-ID
// header wins; single-tenant deployments fall back to the configured default
// company.
func (s *Server) CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(HeaderCompany))

		var companyID snowflake.ID
		if header != "" {
			parsed, err := snowflake.ParseString(header)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("company_id", "invalid_company", "invalid company id"))
				return
			}
			companyID = parsed
		} else if s.cfg.DefaultCompanyID != 0 {
			companyID = snowflake.ID(s.cfg.DefaultCompanyID)
		} else {
			AbortWithError(c, newValidationError("company_id", "invalid_company", "missing company id"))
			return
		}

		ctx := companyctx.WithCompanyID(c.Request.Context(), companyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
