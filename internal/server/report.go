package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) TrialBalance(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"), true)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}
	if asOf == nil {
		now := time.Now().UTC()
		asOf = &now
	}

	resp, err := s.reportSvc.TrialBalance(c.Request.Context(), *asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ProfitAndLoss(c *gin.Context) {
	start, err := parseOptionalTime(c.Query("start"), false)
	if err != nil {
		AbortWithError(c, newValidationError("start", "invalid_start", "invalid start"))
		return
	}
	end, err := parseOptionalTime(c.Query("end"), true)
	if err != nil {
		AbortWithError(c, newValidationError("end", "invalid_end", "invalid end"))
		return
	}

	var startAt, endAt time.Time
	if start != nil {
		startAt = *start
	}
	if end != nil {
		endAt = *end
	}

	resp, err := s.reportSvc.ProfitAndLoss(c.Request.Context(), startAt, endAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BalanceSheet(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"), true)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}
	if asOf == nil {
		now := time.Now().UTC()
		asOf = &now
	}

	resp, err := s.reportSvc.BalanceSheet(c.Request.Context(), *asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
