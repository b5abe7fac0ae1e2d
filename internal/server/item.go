package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
)

type createItemRequest struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
}

func (s *Server) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	unitPrice, err := parseDecimal(req.UnitPrice)
	if err != nil {
		AbortWithError(c, newValidationError("unit_price", "invalid_price", "invalid unit price"))
		return
	}

	resp, err := s.inventorySvc.CreateItem(c.Request.Context(), inventorydomain.CreateItemRequest{
		SKU:       strings.TrimSpace(req.SKU),
		Name:      strings.TrimSpace(req.Name),
		UnitPrice: unitPrice,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetItem(c *gin.Context) {
	resp, err := s.inventorySvc.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListItems(c *gin.Context) {
	resp, err := s.inventorySvc.ListItems(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type adjustStockRequest struct {
	Quantity string `json:"quantity"`
	Note     string `json:"note"`
}

func (s *Server) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quantity, err := parseDecimal(req.Quantity)
	if err != nil || quantity.IsZero() {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "invalid quantity"))
		return
	}

	resp, err := s.inventorySvc.AdjustStock(c.Request.Context(), inventorydomain.AdjustStockRequest{
		ItemID:   c.Param("id"),
		Quantity: quantity,
		Note:     strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStockMovements(c *gin.Context) {
	resp, err := s.inventorySvc.ListMovements(c.Request.Context(), inventorydomain.ListMovementsRequest{
		ItemID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RebuildQuantityOnHand(c *gin.Context) {
	resp, err := s.inventorySvc.RebuildQuantityOnHand(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
