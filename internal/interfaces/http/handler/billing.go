package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/invoiced/backend/internal/application/billing"
)

// BillingHandler handles customer, invoice, credit note and estimate endpoints
type BillingHandler struct {
	BaseHandler
	service *billingapp.Service
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(service *billingapp.Service) *BillingHandler {
	return &BillingHandler{service: service}
}

// CreateCustomer handles POST /customers
func (h *BillingHandler) CreateCustomer(c *gin.Context) {
	var req billingapp.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.service.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetCustomer handles GET /customers/:id
func (h *BillingHandler) GetCustomer(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	resp, err := h.service.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListCustomers handles GET /customers
func (h *BillingHandler) ListCustomers(c *gin.Context) {
	limit, offset := h.Page(c)
	list, err := h.service.ListCustomers(c.Request.Context(), limit, offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, len(list), limit, offset)
}

// TaxIDResponse carries an opened tax id
type TaxIDResponse struct {
	TaxID string `json:"tax_id"`
}

// RevealTaxID handles GET /customers/:id/tax-id
func (h *BillingHandler) RevealTaxID(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	taxID, err := h.service.RevealTaxID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, TaxIDResponse{TaxID: taxID})
}

// CreateInvoice handles POST /invoices
func (h *BillingHandler) CreateInvoice(c *gin.Context) {
	var req billingapp.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.service.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetInvoice handles GET /invoices/:id
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	resp, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListInvoices handles GET /invoices
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	limit, offset := h.Page(c)
	list, err := h.service.ListInvoices(c.Request.Context(), limit, offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, len(list), limit, offset)
}

// IssueInvoice handles POST /invoices/:id/issue
func (h *BillingHandler) IssueInvoice(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	resp, err := h.service.IssueInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CreateCreditNote handles POST /invoices/:id/credit-notes
func (h *BillingHandler) CreateCreditNote(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req billingapp.CreateCreditNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.service.CreateCreditNote(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// CreateEstimate handles POST /estimates
func (h *BillingHandler) CreateEstimate(c *gin.Context) {
	var req billingapp.CreateEstimateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.service.CreateEstimate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ConvertEstimateRequest sets the payment terms of the resulting invoice
type ConvertEstimateRequest struct {
	PaymentTermsDays int `json:"payment_terms_days" binding:"min=0,max=365"`
}

// ConvertEstimate handles POST /estimates/:id/convert
func (h *BillingHandler) ConvertEstimate(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req ConvertEstimateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	terms := time.Duration(req.PaymentTermsDays) * 24 * time.Hour
	resp, err := h.service.ConvertEstimate(c.Request.Context(), id, terms)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}
