package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/excellencepro/dossier-api/internal/dto"
	"github.com/excellencepro/dossier-api/internal/models"
	"github.com/excellencepro/dossier-api/internal/service"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
	"github.com/excellencepro/dossier-api/pkg/response"
)

type requestService interface {
	Submit(ctx context.Context, domainCode string, userID *string, req dto.SubmitRequest) (*dto.SubmitResponse, error)
	Track(ctx context.Context, domainCode, reference string) (*dto.TrackingResult, error)
	Get(ctx context.Context, domainCode, id string) (*dto.RequestDetail, error)
	List(ctx context.Context, domainCode string, query dto.RequestQuery) ([]models.Request, *models.Pagination, error)
	Transition(ctx context.Context, domainCode, id string, actor service.Actor, req dto.TransitionRequest) (*models.StatusHistory, error)
	RecordPayment(ctx context.Context, domainCode, id string, actor service.Actor, req dto.RecordPaymentRequest) (*models.Payment, error)
	Payments(ctx context.Context, domainCode, id string) ([]models.Payment, error)
	Export(ctx context.Context, domainCode, format string, query dto.RequestQuery) (*service.ExportResult, error)
	Receipt(ctx context.Context, domainCode, id, paymentID string) (*service.ExportResult, error)
}

// RequestHandler exposes the request workflow REST endpoints for every domain.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Submit godoc
// @Summary Submit a service request
// @Tags Requests
// @Accept json
// @Produce json
// @Param domain path string true "Domain code (academic, travel, vapvae)"
// @Param payload body dto.SubmitRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /{domain}/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	var userID *string
	if claims := claimsFromContext(c); claims != nil {
		userID = &claims.UserID
	}
	resp, err := h.service.Submit(c.Request.Context(), c.Param("domain"), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Track godoc
// @Summary Track a request by reference
// @Tags Requests
// @Produce json
// @Param domain path string true "Domain code"
// @Param reference path string true "Public reference number"
// @Success 200 {object} response.Envelope
// @Router /{domain}/requests/track/{reference} [get]
func (h *RequestHandler) Track(c *gin.Context) {
	result, err := h.service.Track(c.Request.Context(), c.Param("domain"), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List requests of a domain
// @Tags Requests
// @Produce json
// @Param domain path string true "Domain code"
// @Param status query string false "Comma separated statuses"
// @Param search query string false "Free-text search on reference, name and email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /{domain}/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	requests, pagination, err := h.service.List(c.Request.Context(), c.Param("domain"), parseRequestQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// parseRequestQuery reads the listing filters shared by List and Export.
func parseRequestQuery(c *gin.Context) dto.RequestQuery {
	query := dto.RequestQuery{
		Search: strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				query.Statuses = append(query.Statuses, part)
			}
		}
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return query
}

// Get godoc
// @Summary Get request detail with history and payments
// @Tags Requests
// @Produce json
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /{domain}/requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("domain"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Transition godoc
// @Summary Move a request to a new status
// @Tags Requests
// @Accept json
// @Produce json
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Router /{domain}/requests/{id}/status [post]
func (h *RequestHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	entry, err := h.service.Transition(c.Request.Context(), c.Param("domain"), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// RecordPayment godoc
// @Summary Record a payment against a request
// @Tags Payments
// @Accept json
// @Produce json
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Param payload body dto.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /{domain}/requests/{id}/payments [post]
func (h *RequestHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payment payload"))
		return
	}
	payment, err := h.service.RecordPayment(c.Request.Context(), c.Param("domain"), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Payments godoc
// @Summary List payments of a request
// @Tags Payments
// @Produce json
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /{domain}/requests/{id}/payments [get]
func (h *RequestHandler) Payments(c *gin.Context) {
	payments, err := h.service.Payments(c.Request.Context(), c.Param("domain"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Export godoc
// @Summary Export requests of a domain as CSV or PDF
// @Tags Requests
// @Produce octet-stream
// @Param domain path string true "Domain code"
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Comma separated statuses"
// @Param search query string false "Free-text search on reference, name and email"
// @Success 200 {file} binary
// @Router /{domain}/requests/export [get]
func (h *RequestHandler) Export(c *gin.Context) {
	result, err := h.service.Export(c.Request.Context(), c.Param("domain"), c.DefaultQuery("format", "csv"), parseRequestQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Receipt godoc
// @Summary Download a PDF receipt for a payment
// @Tags Payments
// @Produce octet-stream
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Param paymentID path string true "Payment ID"
// @Success 200 {file} binary
// @Router /{domain}/requests/{id}/payments/{paymentID}/receipt [get]
func (h *RequestHandler) Receipt(c *gin.Context) {
	result, err := h.service.Receipt(c.Request.Context(), c.Param("domain"), c.Param("id"), c.Param("paymentID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Domains godoc
// @Summary List available service domains with their categories and statuses
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /domains [get]
func (h *RequestHandler) Domains(c *gin.Context) {
	type domainInfo struct {
		Code        models.DomainCode       `json:"code"`
		Label       string                  `json:"label"`
		Progression []models.RequestStatus  `json:"progression"`
		Payments    []models.PaymentType    `json:"payment_types"`
		Prices      map[string]models.Price `json:"prices"`
	}
	out := make([]domainInfo, 0, 3)
	for _, cfg := range models.Domains() {
		out = append(out, domainInfo{
			Code:        cfg.Code,
			Label:       cfg.Label,
			Progression: cfg.Progression,
			Payments:    cfg.PaymentTypes,
			Prices:      cfg.Prices,
		})
	}
	response.JSON(c, http.StatusOK, out, nil)
}
