package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
)

type lineItemRequest struct {
	ItemID      string `json:"item_id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxRate     string `json:"tax_rate"`
}

func (r lineItemRequest) toInput() (invoicedomain.LineItemInput, error) {
	quantity, err := parseDecimal(r.Quantity)
	if err != nil {
		return invoicedomain.LineItemInput{}, newValidationError("quantity", "invalid_quantity", "invalid quantity")
	}
	unitPrice, err := parseDecimal(r.UnitPrice)
	if err != nil {
		return invoicedomain.LineItemInput{}, newValidationError("unit_price", "invalid_unit_price", "invalid unit price")
	}
	taxRate, err := parseOptionalDecimal(r.TaxRate)
	if err != nil {
		return invoicedomain.LineItemInput{}, newValidationError("tax_rate", "invalid_tax_rate", "invalid tax rate")
	}

	return invoicedomain.LineItemInput{
		ItemID:      strings.TrimSpace(r.ItemID),
		Description: strings.TrimSpace(r.Description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TaxRate:     taxRate,
	}, nil
}

func toLineInputs(reqs []lineItemRequest) ([]invoicedomain.LineItemInput, error) {
	lines := make([]invoicedomain.LineItemInput, 0, len(reqs))
	for _, r := range reqs {
		line, err := r.toInput()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

type createInvoiceRequest struct {
	CustomerID      string            `json:"customer_id"`
	Status          string            `json:"status"`
	IssueDate       string            `json:"issue_date"`
	DueDate         string            `json:"due_date"`
	Notes           string            `json:"notes"`
	SkipCreditCheck bool              `json:"skip_credit_check"`
	LineItems       []lineItemRequest `json:"line_items"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	lines, err := toLineInputs(req.LineItems)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issueDate, err := parseOptionalTime(req.IssueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue date"))
		return
	}
	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due date"))
		return
	}

	create := invoicedomain.CreateInvoiceRequest{
		CustomerID:      strings.TrimSpace(req.CustomerID),
		LineItems:       lines,
		Status:          invoicedomain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		DueDate:         dueDate,
		Notes:           req.Notes,
		SkipCreditCheck: req.SkipCreditCheck,
	}
	if issueDate != nil {
		create.IssueDate = *issueDate
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateInvoiceRequest struct {
	IssueDate *string           `json:"issue_date"`
	DueDate   *string           `json:"due_date"`
	Notes     *string           `json:"notes"`
	LineItems []lineItemRequest `json:"line_items"`
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	lines, err := toLineInputs(req.LineItems)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	update := invoicedomain.UpdateInvoiceRequest{
		ID:        c.Param("id"),
		LineItems: lines,
		Notes:     req.Notes,
	}
	if req.IssueDate != nil {
		issueDate, err := parseOptionalTime(*req.IssueDate, false)
		if err != nil || issueDate == nil {
			AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue date"))
			return
		}
		update.IssueDate = issueDate
	}
	if req.DueDate != nil {
		dueDate, err := parseOptionalTime(*req.DueDate, true)
		if err != nil || dueDate == nil {
			AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due date"))
			return
		}
		update.DueDate = dueDate
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type changeInvoiceStatusRequest struct {
	Status          string `json:"status"`
	SkipCreditCheck bool   `json:"skip_credit_check"`
}

func (s *Server) ChangeInvoiceStatus(c *gin.Context) {
	var req changeInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.ChangeStatus(c.Request.Context(), invoicedomain.ChangeStatusRequest{
		ID:              c.Param("id"),
		Status:          invoicedomain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		SkipCreditCheck: req.SkipCreditCheck,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID string `form:"customer_id"`
		Status     string `form:"status"`
		IssuedFrom string `form:"issued_from"`
		IssuedTo   string `form:"issued_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	issuedFrom, err := parseOptionalTime(query.IssuedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("issued_from", "invalid_issued_from", "invalid issued_from"))
		return
	}
	issuedTo, err := parseOptionalTime(query.IssuedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("issued_to", "invalid_issued_to", "invalid issued_to"))
		return
	}

	list := invoicedomain.ListInvoiceRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		CustomerID: strings.TrimSpace(query.CustomerID),
		IssuedFrom: issuedFrom,
		IssuedTo:   issuedTo,
	}
	if trimmed := strings.TrimSpace(query.Status); trimmed != "" {
		status := invoicedomain.InvoiceStatus(strings.ToUpper(trimmed))
		if !invoicedomain.ValidStatus(status) {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		list.Status = &status
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), list)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) MarkInvoicesOverdue(c *gin.Context) {
	var req struct {
		AsOf string `json:"as_of"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		AbortWithError(c, invalidRequestError())
		return
	}

	asOf := time.Now().UTC()
	if parsed, err := parseOptionalTime(req.AsOf, true); err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	} else if parsed != nil {
		asOf = *parsed
	}

	count, err := s.invoiceSvc.MarkOverdue(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"marked": count}})
}
