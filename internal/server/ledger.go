package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
)

type createAccountRequest struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.CreateAccount(c.Request.Context(), ledgerdomain.CreateAccountRequest{
		Number: strings.TrimSpace(req.Number),
		Name:   strings.TrimSpace(req.Name),
		Type:   ledgerdomain.AccountType(strings.ToUpper(strings.TrimSpace(req.Type))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAccounts(c *gin.Context) {
	resp, err := s.ledgerSvc.ListAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type journalLineRequest struct {
	AccountID string `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

type createJournalEntryRequest struct {
	Memo       string               `json:"memo"`
	OccurredAt string               `json:"occurred_at"`
	Lines      []journalLineRequest `json:"lines"`
}

// CreateJournalEntry posts a manual entry. Manual entries get a generated
// source id under the "manual" source type so the idempotency key never
// collides with engine-posted entries.
func (s *Server) CreateJournalEntry(c *gin.Context) {
	var req createJournalEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	lines := make([]ledgerdomain.EntryLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		accountID, err := snowflake.ParseString(strings.TrimSpace(line.AccountID))
		if err != nil {
			AbortWithError(c, newValidationError("account_id", "invalid_account", "invalid account id"))
			return
		}
		debit, err := parseDecimal(line.Debit)
		if err != nil {
			AbortWithError(c, newValidationError("debit", "invalid_line_amount", "invalid debit"))
			return
		}
		credit, err := parseDecimal(line.Credit)
		if err != nil {
			AbortWithError(c, newValidationError("credit", "invalid_line_amount", "invalid credit"))
			return
		}
		lines = append(lines, ledgerdomain.EntryLine{
			AccountID: accountID,
			Debit:     debit,
			Credit:    credit,
		})
	}

	occurredAt := time.Now().UTC()
	if parsed, err := parseOptionalTime(req.OccurredAt, false); err != nil {
		AbortWithError(c, newValidationError("occurred_at", "invalid_occurred_at", "invalid occurred_at"))
		return
	} else if parsed != nil {
		occurredAt = *parsed
	}

	err := s.ledgerSvc.CreateEntry(c.Request.Context(), ledgerdomain.EntryInput{
		SourceType: "manual",
		SourceID:   s.genID.Generate(),
		Memo:       strings.TrimSpace(req.Memo),
		OccurredAt: occurredAt,
		Lines:      lines,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "posted"})
}

func (s *Server) ReconcileBalances(c *gin.Context) {
	drifts, err := s.ledgerSvc.ReconcileBalances(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"drifts":  drifts,
		"drifted": len(drifts),
	}})
}
