package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/ledgerline/internal/payment/domain"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
)

type createPaymentRequest struct {
	CustomerID string `json:"customer_id"`
	InvoiceID  string `json:"invoice_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
	PaidAt     string `json:"paid_at"`
	Notes      string `json:"notes"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := parseDecimal(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}
	paidAt, err := parseOptionalTime(req.PaidAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("paid_at", "invalid_paid_at", "invalid paid_at"))
		return
	}

	create := paymentdomain.CreatePaymentRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		InvoiceID:  strings.TrimSpace(req.InvoiceID),
		Amount:     amount,
		Method:     strings.TrimSpace(req.Method),
		Notes:      req.Notes,
	}
	if paidAt != nil {
		create.PaidAt = *paidAt
	}

	resp, err := s.paymentSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePaymentRequest struct {
	Amount    *string `json:"amount"`
	Method    *string `json:"method"`
	PaidAt    *string `json:"paid_at"`
	InvoiceID *string `json:"invoice_id"`
	Notes     *string `json:"notes"`
}

func (s *Server) UpdatePayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := paymentdomain.UpdatePaymentRequest{
		ID:        c.Param("id"),
		Method:    req.Method,
		InvoiceID: req.InvoiceID,
		Notes:     req.Notes,
	}
	if req.Amount != nil {
		amount, err := parseDecimal(*req.Amount)
		if err != nil {
			AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
			return
		}
		update.Amount = &amount
	}
	if req.PaidAt != nil {
		paidAt, err := parseOptionalTime(*req.PaidAt, false)
		if err != nil || paidAt == nil {
			AbortWithError(c, newValidationError("paid_at", "invalid_paid_at", "invalid paid_at"))
			return
		}
		update.PaidAt = paidAt
	}

	resp, err := s.paymentSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.paymentSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) GetPayment(c *gin.Context) {
	resp, err := s.paymentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID string `form:"customer_id"`
		InvoiceID  string `form:"invoice_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		CustomerID: strings.TrimSpace(query.CustomerID),
		InvoiceID:  strings.TrimSpace(query.InvoiceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
