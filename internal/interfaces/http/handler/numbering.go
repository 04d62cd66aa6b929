package handler

import (
	"github.com/gin-gonic/gin"
	billingapp "github.com/invoiced/backend/internal/application/billing"
)

// NumberingHandler exposes the document number sequences of the current tenant
type NumberingHandler struct {
	BaseHandler
	service *billingapp.Service
}

// NewNumberingHandler creates a new NumberingHandler
func NewNumberingHandler(service *billingapp.Service) *NumberingHandler {
	return &NumberingHandler{service: service}
}

// Next handles GET /numbering/:type/next. The number is previewed, not reserved.
func (h *NumberingHandler) Next(c *gin.Context) {
	resp, err := h.service.PreviewNumber(c.Request.Context(), c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SetTemplateRequest changes the template of a sequence
type SetTemplateRequest struct {
	Template string `json:"template" binding:"required,max=50"`
}

// SetTemplate handles PUT /numbering/:type/template
func (h *NumberingHandler) SetTemplate(c *gin.Context) {
	var req SetTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.SetNumberTemplate(c.Request.Context(), c.Param("type"), req.Template); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
