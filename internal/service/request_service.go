package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/excellencepro/dossier-api/internal/dto"
	"github.com/excellencepro/dossier-api/internal/models"
	"github.com/excellencepro/dossier-api/internal/repository"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
	"github.com/excellencepro/dossier-api/pkg/export"
)

// RequestRepo is the per-domain persistence surface the workflow needs.
type RequestRepo interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	GetByReference(ctx context.Context, reference string) (*models.Request, error)
	History(ctx context.Context, requestID string) ([]models.StatusHistory, error)
	Payments(ctx context.Context, requestID string) ([]models.Payment, error)
	GetPayment(ctx context.Context, requestID, paymentID string) (*models.Payment, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	Transition(ctx context.Context, params repository.TransitionParams) (*models.StatusHistory, error)
	RecordPayment(ctx context.Context, params repository.PaymentParams) (*models.Payment, error)
}

type referenceGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type trackingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type notificationDispatcher interface {
	Dispatch(req dto.CreateNotificationRequest)
}

type workflowMetrics interface {
	RecordSubmission(domain string)
	RecordTransition(domain string, forced bool)
	RecordPayment(domain, status string)
	RecordCacheLookup(hit bool)
}

// Actor identifies the authenticated staff member performing an operation,
// together with request metadata for the audit trail.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IP        string
	UserAgent string
}

// RequestService implements the shared request/status/payment workflow for
// every registered domain. Repositories are keyed by domain code; everything
// else is domain-independent.
type RequestService struct {
	repos     map[models.DomainCode]RequestRepo
	refs      referenceGenerator
	cache     trackingCache
	audits    auditWriter
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger
	metrics   workflowMetrics

	csv *export.CSVExporter
	pdf *export.PDFExporter

	trackingTTL time.Duration
}

// NewRequestService constructs the service.
func NewRequestService(
	repos map[models.DomainCode]RequestRepo,
	refs referenceGenerator,
	cache trackingCache,
	audits auditWriter,
	notifier notificationDispatcher,
	validate *validator.Validate,
	logger *zap.Logger,
	trackingTTL time.Duration,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if trackingTTL <= 0 {
		trackingTTL = time.Minute
	}
	return &RequestService{
		repos:       repos,
		refs:        refs,
		cache:       cache,
		audits:      audits,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		trackingTTL: trackingTTL,
	}
}

// SetMetrics attaches an optional workflow metrics recorder.
func (s *RequestService) SetMetrics(m workflowMetrics) {
	s.metrics = m
}

func (s *RequestService) resolve(domainCode string) (*models.DomainConfig, RequestRepo, error) {
	cfg, ok := models.DomainByCode(domainCode)
	if !ok {
		return nil, nil, appErrors.ErrUnknownDomain
	}
	repo, ok := s.repos[cfg.Code]
	if !ok {
		return nil, nil, appErrors.ErrUnknownDomain
	}
	return cfg, repo, nil
}

// Submit opens a new request in the given domain. Pricing comes from the
// domain's static price table; the caller never supplies amounts.
func (s *RequestService) Submit(ctx context.Context, domainCode string, userID *string, req dto.SubmitRequest) (*dto.SubmitResponse, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := validateDetails(cfg, req.Details); err != nil {
		return nil, err
	}

	price, ok := cfg.PriceFor(req.Category, req.Subcategory)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unknown service category %q", models.PriceKey(req.Category, req.Subcategory)))
	}

	reference, err := s.refs.Next(ctx, cfg.ReferencePrefix)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate reference")
	}

	details := req.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	request := &models.Request{
		Reference:     reference,
		UserID:        userID,
		FullName:      req.FullName,
		Phone:         req.Phone,
		Email:         req.Email,
		Category:      req.Category,
		Subcategory:   req.Subcategory,
		Details:       details,
		TotalAmount:   price.Total,
		AdvanceAmount: price.Advance,
		AmountPaid:    0,
		BalanceDue:    price.Total,
		Status:        cfg.InitialStatus(),
	}
	if err := repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	if s.notifier != nil && userID != nil {
		s.notifier.Dispatch(dto.CreateNotificationRequest{
			UserID:           *userID,
			Title:            "Demande enregistrée",
			Body:             fmt.Sprintf("Votre demande %s a été enregistrée. Référence: %s", cfg.Label, reference),
			Type:             string(models.NotificationTypeStatus),
			RequestReference: &reference,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordSubmission(string(cfg.Code))
	}
	s.logger.Info("request submitted",
		zap.String("domain", string(cfg.Code)),
		zap.String("reference", reference),
		zap.String("category", models.PriceKey(req.Category, req.Subcategory)))

	return &dto.SubmitResponse{
		ID:            request.ID,
		Reference:     request.Reference,
		Status:        request.Status,
		TotalAmount:   request.TotalAmount,
		AdvanceAmount: request.AdvanceAmount,
		BalanceDue:    request.BalanceDue,
	}, nil
}

func validateDetails(cfg *models.DomainConfig, raw json.RawMessage) error {
	details := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &details); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "details must be a JSON object")
		}
	}
	for _, field := range cfg.DetailFields {
		value, ok := details[field]
		if !ok || value == nil || value == "" {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("details.%s is required", field))
		}
	}
	return nil
}

// Track answers the public tracker. An unknown reference is a regular answer
// with Found=false, never an error; results are cached briefly.
func (s *RequestService) Track(ctx context.Context, domainCode, reference string) (*dto.TrackingResult, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}

	key := repository.TrackingKey(cfg.Code, reference)
	if s.cache != nil {
		var cached dto.TrackingResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	request, err := repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result := &dto.TrackingResult{Found: false}
			s.cacheTracking(ctx, key, result)
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reference")
	}

	history, err := repo.History(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}

	steps := make([]dto.TrackingStep, 0, len(history))
	for _, entry := range history {
		steps = append(steps, dto.TrackingStep{
			Status:    entry.NewStatus,
			Notes:     entry.Notes,
			Timestamp: entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	result := &dto.TrackingResult{
		Found:      true,
		Reference:  request.Reference,
		Domain:     cfg.Code,
		Status:     request.Status,
		FullName:   request.FullName,
		Category:   models.PriceKey(request.Category, request.Subcategory),
		AmountPaid: request.AmountPaid,
		BalanceDue: request.BalanceDue,
		History:    steps,
	}
	s.cacheTracking(ctx, key, result)
	return result, nil
}

func (s *RequestService) cacheTracking(ctx context.Context, key string, result *dto.TrackingResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, result, s.trackingTTL); err != nil {
		s.logger.Warn("failed to cache tracking result", zap.String("key", key), zap.Error(err))
	}
}

func (s *RequestService) invalidateTracking(ctx context.Context, domain models.DomainCode, reference string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.TrackingKey(domain, reference)); err != nil {
		s.logger.Warn("failed to invalidate tracking cache", zap.String("reference", reference), zap.Error(err))
	}
}

// Get returns one request with its history and payments.
func (s *RequestService) Get(ctx context.Context, domainCode, id string) (*dto.RequestDetail, error) {
	_, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}
	request, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	history, err := repo.History(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	payments, err := repo.Payments(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	return &dto.RequestDetail{Request: request, History: history, Payments: payments}, nil
}

// List returns requests of a domain with pagination.
func (s *RequestService) List(ctx context.Context, domainCode string, query dto.RequestQuery) ([]models.Request, *models.Pagination, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, nil, err
	}
	filter := models.RequestFilter{
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	for _, raw := range query.Statuses {
		status := models.RequestStatus(raw)
		if !cfg.ValidStatus(status) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	requests, total, err := repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return requests, pagination, nil
}

// Transition moves a request to a new status. Regular moves follow the
// domain progression; anything else needs Force and is recorded as an
// override in the audit trail.
func (s *RequestService) Transition(ctx context.Context, domainCode, id string, actor Actor, req dto.TransitionRequest) (*models.StatusHistory, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	target := models.RequestStatus(req.Status)
	if !cfg.ValidStatus(target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q for domain %s", req.Status, cfg.Code))
	}

	request, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.Status == target {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request already in the requested status")
	}

	override := false
	if !cfg.CanTransition(request.Status, target) {
		if !req.Force {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("transition %s -> %s is not allowed without force", request.Status, target))
		}
		override = true
		s.logger.Warn("forced status override",
			zap.String("domain", string(cfg.Code)),
			zap.String("request_id", request.ID),
			zap.String("from", string(request.Status)),
			zap.String("to", string(target)),
			zap.String("actor_id", actor.UserID))
	}

	actorID := actor.UserID
	entry, err := repo.Transition(ctx, repository.TransitionParams{
		RequestID: request.ID,
		From:      request.Status,
		To:        target,
		Notes:     req.Notes,
		ActorID:   &actorID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request status changed concurrently, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(cfg.Code), override)
	}

	action := models.AuditActionStatusTransition
	if override {
		action = models.AuditActionStatusOverride
	}
	s.writeAudit(ctx, actor, action, string(cfg.Code)+"_request", request.ID,
		map[string]string{"status": string(request.Status)},
		map[string]string{"status": string(target)})

	s.invalidateTracking(ctx, cfg.Code, request.Reference)

	if s.notifier != nil && request.UserID != nil {
		reference := request.Reference
		s.notifier.Dispatch(dto.CreateNotificationRequest{
			UserID:           *request.UserID,
			Title:            "Statut mis à jour",
			Body:             fmt.Sprintf("Votre dossier %s est passé au statut %s.", reference, target),
			Type:             string(models.NotificationTypeStatus),
			RequestReference: &reference,
		})
	}
	return entry, nil
}

// RecordPayment appends a payment to a request.
func (s *RequestService) RecordPayment(ctx context.Context, domainCode, id string, actor Actor, req dto.RecordPaymentRequest) (*models.Payment, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	paymentType := models.PaymentType(req.Type)
	if !cfg.ValidPaymentType(paymentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("payment type %q is not part of the %s schedule", req.Type, cfg.Code))
	}
	status := models.PaymentStatusCompleted
	if req.Status != "" {
		status = models.PaymentStatus(req.Status)
	}

	request, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	payment, err := repo.RecordPayment(ctx, repository.PaymentParams{
		RequestID: request.ID,
		Amount:    req.Amount,
		Type:      paymentType,
		Status:    status,
		Reference: req.Reference,
		Method:    req.Method,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPaymentExceedsTotal) {
			return nil, appErrors.ErrPaymentExceedsTotal
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if s.metrics != nil {
		s.metrics.RecordPayment(string(cfg.Code), string(payment.Status))
	}
	s.writeAudit(ctx, actor, models.AuditActionPaymentRecord, string(cfg.Code)+"_request", request.ID,
		nil, map[string]string{
			"payment_id": payment.ID,
			"amount":     strconv.FormatInt(payment.Amount, 10),
			"status":     string(payment.Status),
		})

	s.invalidateTracking(ctx, cfg.Code, request.Reference)

	if s.notifier != nil && request.UserID != nil && status == models.PaymentStatusCompleted {
		reference := request.Reference
		s.notifier.Dispatch(dto.CreateNotificationRequest{
			UserID:           *request.UserID,
			Title:            "Paiement enregistré",
			Body:             fmt.Sprintf("Un paiement de %d FCFA a été enregistré sur le dossier %s.", payment.Amount, reference),
			Type:             string(models.NotificationTypePayment),
			RequestReference: &reference,
		})
	}
	return payment, nil
}

// Payments lists the payments of one request.
func (s *RequestService) Payments(ctx context.Context, domainCode, id string) ([]models.Payment, error) {
	_, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}
	if _, err := repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	payments, err := repo.Payments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ExportResult carries rendered export bytes with HTTP metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

var exportHeaders = []string{"Reference", "Full Name", "Email", "Phone", "Category", "Status", "Total", "Paid", "Balance", "Created At"}

// exportPageSize bounds a single repository read while exporting; Export
// keeps paging until the filtered set is exhausted.
const exportPageSize = 200

// Export renders the domain's requests as CSV or PDF. It honors the same
// status/search filters as List and covers the whole filtered set, not just
// the first page.
func (s *RequestService) Export(ctx context.Context, domainCode, format string, query dto.RequestQuery) (*ExportResult, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}

	filter := models.RequestFilter{
		Search:   query.Search,
		Page:     1,
		PageSize: exportPageSize,
	}
	for _, raw := range query.Statuses {
		status := models.RequestStatus(raw)
		if !cfg.ValidStatus(status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	var requests []models.Request
	for {
		page, total, err := repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requests for export")
		}
		requests = append(requests, page...)
		if len(page) < filter.PageSize || len(requests) >= total {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{Headers: exportHeaders}
	for _, request := range requests {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Reference":  request.Reference,
			"Full Name":  request.FullName,
			"Email":      request.Email,
			"Phone":      request.Phone,
			"Category":   models.PriceKey(request.Category, request.Subcategory),
			"Status":     string(request.Status),
			"Total":      strconv.FormatInt(request.TotalAmount, 10),
			"Paid":       strconv.FormatInt(request.AmountPaid, 10),
			"Balance":    strconv.FormatInt(request.BalanceDue, 10),
			"Created At": request.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("%s-requests-%s.csv", cfg.Code, stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("%s — demandes", cfg.Label))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("%s-requests-%s.pdf", cfg.Code, stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// Receipt renders a PDF receipt for one recorded payment.
func (s *RequestService) Receipt(ctx context.Context, domainCode, id, paymentID string) (*ExportResult, error) {
	cfg, repo, err := s.resolve(domainCode)
	if err != nil {
		return nil, err
	}
	request, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	payment, err := repo.GetPayment(ctx, request.ID, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	method := "-"
	if payment.Method != nil {
		method = *payment.Method
	}
	lines := []export.ReceiptLine{
		{Label: "Dossier", Value: request.Reference},
		{Label: "Client", Value: request.FullName},
		{Label: "Service", Value: cfg.Label},
		{Label: "Montant", Value: fmt.Sprintf("%d FCFA", payment.Amount)},
		{Label: "Type", Value: string(payment.Type)},
		{Label: "Statut", Value: string(payment.Status)},
		{Label: "Méthode", Value: method},
		{Label: "Date", Value: payment.CreatedAt.UTC().Format("2006-01-02 15:04")},
		{Label: "Reste à payer", Value: fmt.Sprintf("%d FCFA", request.BalanceDue)},
	}
	content, err := s.pdf.RenderReceipt("Reçu de paiement", lines)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("receipt-%s-%s.pdf", request.Reference, payment.ID),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func (s *RequestService) writeAudit(ctx context.Context, actor Actor, action, resource, resourceID string, oldValues, newValues map[string]string) {
	if s.audits == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if oldValues != nil {
		if raw, err := json.Marshal(oldValues); err == nil {
			entry.OldValues = raw
		}
	}
	if newValues != nil {
		if raw, err := json.Marshal(newValues); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
