package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/billing"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"github.com/invoiced/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from request context",
			setup: func(c *gin.Context) {
				c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), "ctx-request-id"))
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(logger.RequestIDHeader, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), "ctx-id"))
				c.Request.Header.Set(logger.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodGet, "/", "")
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandler_Responses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("created", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", "")
		h.Created(c, map[string]string{"number": "INV-00001"})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"success":true,"data":{"number":"INV-00001"}}`, w.Body.String())
	})

	t.Run("with meta", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/", "")
		h.SuccessWithMeta(c, []int{1, 2}, 2, 20, 0)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":[1,2],"meta":{"limit":20,"offset":0,"count":2}}`, w.Body.String())
	})

	t.Run("no content", func(t *testing.T) {
		c, w := newTestContext(http.MethodPut, "/", "")
		h.NoContent(c)
		c.Writer.WriteHeaderNow()
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Zero(t, w.Body.Len())
	})

	t.Run("error carries request id", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/", "")
		c.Request.Header.Set(logger.RequestIDHeader, "req-42")
		h.NotFound(c, "Invoice not found")
		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, "req-42", resp.Error.RequestID)
	})
}

func TestBaseHandler_BindJSON(t *testing.T) {
	h := &BaseHandler{}
	type request struct {
		Name     string `json:"name" binding:"required"`
		Currency string `json:"currency" binding:"required,len=3"`
	}

	t.Run("valid", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/", `{"name":"Acme","currency":"EUR"}`)
		var req request
		assert.True(t, h.BindJSON(c, &req))
		assert.Equal(t, "Acme", req.Name)
	})

	t.Run("malformed", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"name":`)
		var req request
		assert.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid fields", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"currency":"EURO"}`)
		var req request
		assert.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Len(t, resp.Error.Details, 2)
	})

	t.Run("body over the limit", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"name":"`+strings.Repeat("x", 64)+`","currency":"EUR"}`)
		c.Request.Body = http.MaxBytesReader(w, c.Request.Body, 16)
		var req request
		assert.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, dto.ErrCodeRequestTooLarge, decodeResponse(t, w).Error.Code)
	})
}

func TestBaseHandler_ParseID(t *testing.T) {
	h := &BaseHandler{}
	id := uuid.New()

	c, _ := newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := h.ParseID(c)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	c, w := newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok = h.ParseID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBaseHandler_Page(t *testing.T) {
	h := &BaseHandler{}
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", 20, 0},
		{"?limit=50&offset=100", 50, 100},
		{"?limit=1000", 20, 0},
		{"?limit=-1&offset=-5", 20, 0},
		{"?limit=abc", 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := newTestContext(http.MethodGet, "/"+tt.query, "")
			limit, offset := h.Page(c)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestBaseHandler_HandleError(t *testing.T) {
	h := &BaseHandler{}
	invalid := billing.Validate(billing.NewCustomer(1, "", "", "", "EURO"))
	require.Error(t, invalid)

	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		message    string
		retryAfter string
	}{
		{
			name:   "not found",
			err:    fmt.Errorf("customer x: %w", shared.ErrNotFound),
			status: http.StatusNotFound,
			code:   dto.ErrCodeNotFound,
		},
		{
			name:   "tenant mismatch",
			err:    shared.ErrTenantMismatch,
			status: http.StatusBadRequest,
			code:   dto.ErrCodeTenantMismatch,
		},
		{
			name:   "tenant context missing",
			err:    shared.ErrTenantContextMissing,
			status: http.StatusBadRequest,
			code:   dto.ErrCodeTenantContextMissing,
		},
		{
			name:       "numbering unavailable",
			err:        fmt.Errorf("reserve: %w", shared.ErrNumberingUnavailable),
			status:     http.StatusServiceUnavailable,
			code:       dto.ErrCodeNumberingUnavailable,
			retryAfter: "1",
		},
		{
			name:    "user supplied duplicate",
			err:     shared.NewDuplicateNumberError("invoice", "INV-7", true, shared.ErrNumberTaken),
			status:  http.StatusConflict,
			code:    dto.ErrCodeDuplicateNumber,
			message: "Number INV-7 is already used by another invoice",
		},
		{
			name:    "generated duplicate",
			err:     shared.NewDuplicateNumberError("invoice", "INV-00003", false, shared.ErrNumberTaken),
			status:  http.StatusConflict,
			code:    dto.ErrCodeDuplicateNumber,
			message: "Could not assign a unique number, please retry",
		},
		{
			name:   "invalid state",
			err:    shared.ErrInvalidState,
			status: http.StatusUnprocessableEntity,
			code:   dto.ErrCodeInvalidState,
		},
		{
			name:   "domain validation",
			err:    invalid,
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name:    "unexpected",
			err:     errors.New("connection reset"),
			status:  http.StatusInternalServerError,
			code:    dto.ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodPost, "/", "")
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			assert.Len(t, c.Errors, 1, "the error is recorded on the context")
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/", "")
	h.HandleError(c, nil)
	assert.Zero(t, w.Body.Len())
	assert.Empty(t, c.Errors)
}

func TestBaseHandler_HandleError_ValidationDetails(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodPost, "/", "")
	h.HandleError(c, billing.Validate(billing.NewCustomer(1, "", "", "", "EURO")))

	resp := decodeResponse(t, w)
	fields := make([]string, 0, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"name", "currency"}, fields)
}
