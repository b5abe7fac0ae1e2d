package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bankdomain "github.com/smallbiznis/ledgerline/internal/bank/domain"
)

type createBankAccountRequest struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
}

func (s *Server) CreateBankAccount(c *gin.Context) {
	var req createBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bankSvc.CreateAccount(c.Request.Context(), bankdomain.CreateAccountRequest{
		Name:          strings.TrimSpace(req.Name),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBankAccount(c *gin.Context) {
	resp, err := s.bankSvc.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBankAccounts(c *gin.Context) {
	resp, err := s.bankSvc.ListAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createBankTransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurred_at"`
}

func (s *Server) CreateBankTransaction(c *gin.Context) {
	var req createBankTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := parseDecimal(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}
	occurredAt, err := parseOptionalTime(req.OccurredAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("occurred_at", "invalid_occurred_at", "invalid occurred_at"))
		return
	}

	create := bankdomain.CreateTransactionRequest{
		BankAccountID: c.Param("id"),
		Type:          bankdomain.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Amount:        amount,
		Description:   strings.TrimSpace(req.Description),
	}
	if occurredAt != nil {
		create.OccurredAt = *occurredAt
	}

	resp, err := s.bankSvc.CreateTransaction(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBankTransactions(c *gin.Context) {
	resp, err := s.bankSvc.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type startReconciliationRequest struct {
	BankAccountID    string `json:"bank_account_id"`
	StatementDate    string `json:"statement_date"`
	StatementBalance string `json:"statement_balance"`
}

func (s *Server) StartReconciliation(c *gin.Context) {
	var req startReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	statementBalance, err := parseDecimal(req.StatementBalance)
	if err != nil {
		AbortWithError(c, newValidationError("statement_balance", "invalid_amount", "invalid statement balance"))
		return
	}
	statementDate, err := parseOptionalTime(req.StatementDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("statement_date", "invalid_statement_date", "invalid statement date"))
		return
	}

	start := bankdomain.StartReconciliationRequest{
		BankAccountID:    strings.TrimSpace(req.BankAccountID),
		StatementBalance: statementBalance,
	}
	if statementDate != nil {
		start.StatementDate = *statementDate
	}

	resp, err := s.bankSvc.StartReconciliation(c.Request.Context(), start)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReconciliation(c *gin.Context) {
	resp, err := s.bankSvc.GetReconciliation(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setReconciliationItemRequest struct {
	TransactionID string `json:"transaction_id"`
	Cleared       bool   `json:"cleared"`
}

func (s *Server) SetReconciliationItem(c *gin.Context) {
	var req setReconciliationItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.bankSvc.SetCleared(c.Request.Context(), bankdomain.SetClearedRequest{
		ReconciliationID: c.Param("id"),
		TransactionID:    strings.TrimSpace(req.TransactionID),
		Cleared:          req.Cleared,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) FinishReconciliation(c *gin.Context) {
	resp, err := s.bankSvc.FinishReconciliation(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
