package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/excellencepro/dossier-api/internal/dto"
	"github.com/excellencepro/dossier-api/internal/models"
	"github.com/excellencepro/dossier-api/internal/repository"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
)

type stubRequestRepo struct {
	requests map[string]*models.Request
	history  map[string][]models.StatusHistory
	payments map[string][]models.Payment

	transitionErr error
	paymentErr    error
}

func newStubRequestRepo() *stubRequestRepo {
	return &stubRequestRepo{
		requests: map[string]*models.Request{},
		history:  map[string][]models.StatusHistory{},
		payments: map[string][]models.Payment{},
	}
}

func (r *stubRequestRepo) Create(_ context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = "req-" + request.Reference
	}
	r.requests[request.ID] = request
	r.history[request.ID] = []models.StatusHistory{{
		ID: "hist-initial", RequestID: request.ID, NewStatus: request.Status, CreatedAt: time.Now(),
	}}
	return nil
}

func (r *stubRequestRepo) GetByID(_ context.Context, id string) (*models.Request, error) {
	request, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return request, nil
}

func (r *stubRequestRepo) GetByReference(_ context.Context, reference string) (*models.Request, error) {
	for _, request := range r.requests {
		if request.Reference == reference {
			return request, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubRequestRepo) History(_ context.Context, requestID string) ([]models.StatusHistory, error) {
	return r.history[requestID], nil
}

func (r *stubRequestRepo) Payments(_ context.Context, requestID string) ([]models.Payment, error) {
	return r.payments[requestID], nil
}

func (r *stubRequestRepo) GetPayment(_ context.Context, requestID, paymentID string) (*models.Payment, error) {
	for _, payment := range r.payments[requestID] {
		if payment.ID == paymentID {
			return &payment, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubRequestRepo) List(_ context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	out := make([]models.Request, 0, len(r.requests))
	for _, request := range r.requests {
		if len(filter.Statuses) > 0 && !statusIn(filter.Statuses, request.Status) {
			continue
		}
		out = append(out, *request)
	}
	return out, len(out), nil
}

func statusIn(statuses []models.RequestStatus, status models.RequestStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func (r *stubRequestRepo) Transition(_ context.Context, params repository.TransitionParams) (*models.StatusHistory, error) {
	if r.transitionErr != nil {
		return nil, r.transitionErr
	}
	request, ok := r.requests[params.RequestID]
	if !ok || request.Status != params.From {
		return nil, repository.ErrStatusConflict
	}
	request.Status = params.To
	entry := models.StatusHistory{
		ID: "hist-next", RequestID: params.RequestID,
		OldStatus: &params.From, NewStatus: params.To,
		Notes: params.Notes, ActorID: params.ActorID, CreatedAt: time.Now(),
	}
	r.history[params.RequestID] = append(r.history[params.RequestID], entry)
	return &entry, nil
}

func (r *stubRequestRepo) RecordPayment(_ context.Context, params repository.PaymentParams) (*models.Payment, error) {
	if r.paymentErr != nil {
		return nil, r.paymentErr
	}
	request, ok := r.requests[params.RequestID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if params.Status == models.PaymentStatusCompleted {
		if request.AmountPaid+params.Amount > request.TotalAmount {
			return nil, repository.ErrPaymentExceedsTotal
		}
		request.AmountPaid += params.Amount
		request.BalanceDue = request.TotalAmount - request.AmountPaid
	}
	payment := models.Payment{
		ID: "pay-1", RequestID: params.RequestID, Amount: params.Amount,
		Type: params.Type, Status: params.Status, CreatedAt: time.Now(),
	}
	r.payments[params.RequestID] = append(r.payments[params.RequestID], payment)
	return &payment, nil
}

type stubRefGen struct {
	seq int
}

func (g *stubRefGen) Next(_ context.Context, prefix string) (string, error) {
	g.seq++
	return fmt.Sprintf("%s-20260827-%04d", prefix, g.seq), nil
}

type stubCache struct {
	values map[string][]byte
}

func newStubCache() *stubCache { return &stubCache{values: map[string][]byte{}} }

func (c *stubCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *stubCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	delete(c.values, key)
	return nil
}

type stubAudit struct {
	entries []*models.AuditLog
}

func (a *stubAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type stubNotifier struct {
	dispatched []dto.CreateNotificationRequest
}

func (n *stubNotifier) Dispatch(req dto.CreateNotificationRequest) {
	n.dispatched = append(n.dispatched, req)
}

func newTestRequestService(repo *stubRequestRepo) (*RequestService, *stubAudit, *stubNotifier, *stubCache) {
	audits := &stubAudit{}
	notifier := &stubNotifier{}
	cache := newStubCache()
	repos := map[models.DomainCode]RequestRepo{
		models.DomainAcademic: repo,
		models.DomainTravel:   repo,
		models.DomainVAPVAE:   repo,
	}
	svc := NewRequestService(repos, &stubRefGen{}, cache, audits, notifier, nil, nil, time.Minute)
	return svc, audits, notifier, cache
}

func academicSubmission() dto.SubmitRequest {
	return dto.SubmitRequest{
		FullName:    "Awa Diop",
		Phone:       "+221770000001",
		Email:       "awa@example.com",
		Category:    "MASTER",
		Subcategory: "MEMOIRE_MASTER",
		Details:     json.RawMessage(`{"institution":"UCAD","field_of_study":"Droit"}`),
	}
}

func TestRequestServiceSubmitAppliesPriceTable(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.Reference, "REF-"))
	require.Equal(t, models.StatusPending, resp.Status)
	require.Equal(t, int64(180000), resp.TotalAmount)
	require.Equal(t, int64(90000), resp.AdvanceAmount)
	require.Equal(t, int64(180000), resp.BalanceDue)

	stored := repo.requests["req-"+resp.Reference]
	require.NotNil(t, stored)
	require.Len(t, repo.history[stored.ID], 1)
	require.Nil(t, repo.history[stored.ID][0].OldStatus)
}

func TestRequestServiceSubmitRejectsUnknownCategory(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	req := academicSubmission()
	req.Category = "UNKNOWN"
	_, err := svc.Submit(context.Background(), "academic", nil, req)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSubmitRequiresDomainDetails(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	req := academicSubmission()
	req.Details = json.RawMessage(`{"institution":"UCAD"}`)
	_, err := svc.Submit(context.Background(), "academic", nil, req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "field_of_study")
}

func TestRequestServiceSubmitUnknownDomain(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	_, err := svc.Submit(context.Background(), "plumbing", nil, academicSubmission())
	require.Equal(t, appErrors.ErrUnknownDomain.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceTrackUnknownReferenceIsNotAnError(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	result, err := svc.Track(context.Background(), "academic", "REF-00000000-0000")
	require.NoError(t, err)
	require.False(t, result.Found)
}

func TestRequestServiceTrackReturnsHistory(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	result, err := svc.Track(context.Background(), "academic", resp.Reference)
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, resp.Reference, result.Reference)
	require.Equal(t, models.StatusPending, result.Status)
	require.Len(t, result.History, 1)
}

func TestRequestServiceTransitionForwardSkipAllowed(t *testing.T) {
	repo := newStubRequestRepo()
	svc, audits, notifier, _ := newTestRequestService(repo)

	userID := "client-1"
	resp, err := svc.Submit(context.Background(), "academic", &userID, academicSubmission())
	require.NoError(t, err)
	notifier.dispatched = nil

	entry, err := svc.Transition(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInWriting)})
	require.NoError(t, err)
	require.Equal(t, models.StatusInWriting, entry.NewStatus)
	require.Len(t, audits.entries, 1)
	require.Equal(t, models.AuditActionStatusTransition, audits.entries[0].Action)
	require.Len(t, notifier.dispatched, 1)
}

func TestRequestServiceTransitionBackwardRequiresForce(t *testing.T) {
	repo := newStubRequestRepo()
	svc, audits, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInReview)})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInfoReceived)})
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	entry, err := svc.Transition(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInfoReceived), Force: true})
	require.NoError(t, err)
	require.Equal(t, models.StatusInfoReceived, entry.NewStatus)

	last := audits.entries[len(audits.entries)-1]
	require.Equal(t, models.AuditActionStatusOverride, last.Action)
}

func TestRequestServiceTransitionConflictMapsToConflict(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	repo.transitionErr = repository.ErrStatusConflict
	_, err = svc.Transition(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInfoReceived)})
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceTransitionInvalidatesTrackingCache(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, cache := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	_, err = svc.Track(context.Background(), "academic", resp.Reference)
	require.NoError(t, err)
	require.NotEmpty(t, cache.values)

	_, err = svc.Transition(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInfoReceived)})
	require.NoError(t, err)
	require.Empty(t, cache.values)

	result, err := svc.Track(context.Background(), "academic", resp.Reference)
	require.NoError(t, err)
	require.Equal(t, models.StatusInfoReceived, result.Status)
}

func TestRequestServiceTrackIsScopedToDomain(t *testing.T) {
	repos := map[models.DomainCode]RequestRepo{
		models.DomainAcademic: newStubRequestRepo(),
		models.DomainTravel:   newStubRequestRepo(),
	}
	cache := newStubCache()
	svc := NewRequestService(repos, &stubRefGen{}, cache, &stubAudit{}, &stubNotifier{}, nil, nil, time.Minute)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	academic, err := svc.Track(context.Background(), "academic", resp.Reference)
	require.NoError(t, err)
	require.True(t, academic.Found)

	travel, err := svc.Track(context.Background(), "travel", resp.Reference)
	require.NoError(t, err)
	require.False(t, travel.Found)

	// The cached travel not-found answer must not shadow the academic entry.
	again, err := svc.Track(context.Background(), "academic", resp.Reference)
	require.NoError(t, err)
	require.True(t, again.Found)
	require.Equal(t, models.DomainAcademic, again.Domain)
}

func TestRequestServiceRecordPaymentHappyPath(t *testing.T) {
	repo := newStubRequestRepo()
	svc, audits, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	payment, err := svc.RecordPayment(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.RecordPaymentRequest{Amount: 90000, Type: string(models.PaymentTypeAdvance)})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.Equal(t, int64(90000), repo.requests[resp.ID].AmountPaid)
	require.Equal(t, int64(90000), repo.requests[resp.ID].BalanceDue)
	require.Equal(t, models.AuditActionPaymentRecord, audits.entries[len(audits.entries)-1].Action)
}

func TestRequestServiceRecordPaymentExceedsTotal(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.RecordPaymentRequest{Amount: 200000, Type: string(models.PaymentTypeBalance)})
	require.Equal(t, appErrors.ErrPaymentExceedsTotal.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceRecordPaymentRejectsForeignType(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.RecordPaymentRequest{Amount: 10000, Type: string(models.PaymentTypeStage1)})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceExportCSV(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	first, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)

	other := academicSubmission()
	other.FullName = "Moussa Ndiaye"
	other.Email = "moussa@example.com"
	_, err = svc.Submit(context.Background(), "academic", nil, other)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), "academic", first.ID, Actor{UserID: "agent-1"},
		dto.TransitionRequest{Status: string(models.StatusInWriting)})
	require.NoError(t, err)

	result, err := svc.Export(context.Background(), "academic", "csv", dto.RequestQuery{})
	require.NoError(t, err)
	require.Equal(t, "text/csv", result.ContentType)
	require.Contains(t, string(result.Content), "Reference")
	require.Contains(t, string(result.Content), "Awa Diop")
	require.Contains(t, string(result.Content), "Moussa Ndiaye")

	filtered, err := svc.Export(context.Background(), "academic", "csv",
		dto.RequestQuery{Statuses: []string{string(models.StatusInWriting)}})
	require.NoError(t, err)
	require.Contains(t, string(filtered.Content), "Awa Diop")
	require.NotContains(t, string(filtered.Content), "Moussa Ndiaye")
}

func TestRequestServiceExportRejectsUnknownStatus(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	_, err := svc.Export(context.Background(), "academic", "csv", dto.RequestQuery{Statuses: []string{"bogus"}})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceReceipt(t *testing.T) {
	repo := newStubRequestRepo()
	svc, _, _, _ := newTestRequestService(repo)

	resp, err := svc.Submit(context.Background(), "academic", nil, academicSubmission())
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), "academic", resp.ID, Actor{UserID: "agent-1"},
		dto.RecordPaymentRequest{Amount: 90000, Type: string(models.PaymentTypeAdvance)})
	require.NoError(t, err)

	result, err := svc.Receipt(context.Background(), "academic", resp.ID, payment.ID)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", result.ContentType)
	require.NotEmpty(t, result.Content)
}
