package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellencepro/dossier-api/internal/dto"
	"github.com/excellencepro/dossier-api/internal/middleware"
	"github.com/excellencepro/dossier-api/internal/models"
	"github.com/excellencepro/dossier-api/internal/service"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
)

type requestServiceMock struct {
	submitResp *dto.SubmitResponse
	submitErr  error
	lastUserID *string

	trackResp *dto.TrackingResult
	trackErr  error
	lastRef   string

	transitionResp *models.StatusHistory
	transitionErr  error
	lastTransition dto.TransitionRequest
	lastActor      service.Actor

	paymentResp *models.Payment
	paymentErr  error

	exportResp      *service.ExportResult
	exportErr       error
	lastExportQuery dto.RequestQuery
}

func (m *requestServiceMock) Submit(_ context.Context, _ string, userID *string, _ dto.SubmitRequest) (*dto.SubmitResponse, error) {
	m.lastUserID = userID
	return m.submitResp, m.submitErr
}

func (m *requestServiceMock) Track(_ context.Context, _ string, reference string) (*dto.TrackingResult, error) {
	m.lastRef = reference
	return m.trackResp, m.trackErr
}

func (m *requestServiceMock) Get(_ context.Context, _, _ string) (*dto.RequestDetail, error) {
	return nil, appErrors.ErrNotFound
}

func (m *requestServiceMock) List(_ context.Context, _ string, _ dto.RequestQuery) ([]models.Request, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func (m *requestServiceMock) Transition(_ context.Context, _, _ string, actor service.Actor, req dto.TransitionRequest) (*models.StatusHistory, error) {
	m.lastActor = actor
	m.lastTransition = req
	return m.transitionResp, m.transitionErr
}

func (m *requestServiceMock) RecordPayment(_ context.Context, _, _ string, _ service.Actor, _ dto.RecordPaymentRequest) (*models.Payment, error) {
	return m.paymentResp, m.paymentErr
}

func (m *requestServiceMock) Payments(_ context.Context, _, _ string) ([]models.Payment, error) {
	return nil, nil
}

func (m *requestServiceMock) Export(_ context.Context, _, _ string, query dto.RequestQuery) (*service.ExportResult, error) {
	m.lastExportQuery = query
	return m.exportResp, m.exportErr
}

func (m *requestServiceMock) Receipt(_ context.Context, _, _, _ string) (*service.ExportResult, error) {
	return m.exportResp, m.exportErr
}

func testContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	c.Request = req
	return c, w
}

func TestRequestHandlerSubmitAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{
		submitResp: &dto.SubmitResponse{Reference: "REF-20260827-0001", Status: models.StatusPending, TotalAmount: 180000},
	}
	handler := NewRequestHandler(mockSvc)

	body, _ := json.Marshal(dto.SubmitRequest{
		FullName: "Awa Diop", Phone: "+221770000001", Email: "awa@example.com",
		Category: "MASTER", Subcategory: "MEMOIRE_MASTER",
	})
	c, w := testContext(t, http.MethodPost, "/api/v1/academic/requests", body)
	c.Params = gin.Params{{Key: "domain", Value: "academic"}}

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, mockSvc.lastUserID)
	assert.Contains(t, w.Body.String(), "REF-20260827-0001")
}

func TestRequestHandlerSubmitAuthenticatedLinksUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{submitResp: &dto.SubmitResponse{Reference: "REF-20260827-0002"}}
	handler := NewRequestHandler(mockSvc)

	body, _ := json.Marshal(dto.SubmitRequest{
		FullName: "Moussa Ba", Phone: "+221770000002", Email: "moussa@example.com", Category: "BTS",
	})
	c, w := testContext(t, http.MethodPost, "/api/v1/academic/requests", body)
	c.Params = gin.Params{{Key: "domain", Value: "academic"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.lastUserID)
	assert.Equal(t, "client-1", *mockSvc.lastUserID)
}

func TestRequestHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceMock{})

	c, w := testContext(t, http.MethodPost, "/api/v1/academic/requests", []byte(`{"full_name":`))
	c.Params = gin.Params{{Key: "domain", Value: "academic"}}

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerTrackNotFoundIsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{trackResp: &dto.TrackingResult{Found: false}}
	handler := NewRequestHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/api/v1/academic/requests/track/REF-00000000-0000", nil)
	c.Params = gin.Params{
		{Key: "domain", Value: "academic"},
		{Key: "reference", Value: "REF-00000000-0000"},
	}

	handler.Track(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REF-00000000-0000", mockSvc.lastRef)
	assert.Contains(t, w.Body.String(), `"found":false`)
}

func TestRequestHandlerTransitionPassesActorAndForce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	old := models.StatusInReview
	mockSvc := &requestServiceMock{
		transitionResp: &models.StatusHistory{OldStatus: &old, NewStatus: models.StatusInfoReceived},
	}
	handler := NewRequestHandler(mockSvc)

	body, _ := json.Marshal(dto.TransitionRequest{Status: "info_received", Force: true})
	c, w := testContext(t, http.MethodPost, "/api/v1/academic/requests/req-1/status", body)
	c.Params = gin.Params{{Key: "domain", Value: "academic"}, {Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})

	handler.Transition(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastTransition.Force)
	assert.Equal(t, "agent-1", mockSvc.lastActor.UserID)
}

func TestRequestHandlerTransitionConflictStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{transitionErr: appErrors.ErrInvalidTransition}
	handler := NewRequestHandler(mockSvc)

	body, _ := json.Marshal(dto.TransitionRequest{Status: "completed"})
	c, w := testContext(t, http.MethodPost, "/api/v1/academic/requests/req-1/status", body)
	c.Params = gin.Params{{Key: "domain", Value: "academic"}, {Key: "id", Value: "req-1"}}

	handler.Transition(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TRANSITION")
}

func TestRequestHandlerRecordPaymentExceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{paymentErr: appErrors.ErrPaymentExceedsTotal}
	handler := NewRequestHandler(mockSvc)

	body, _ := json.Marshal(dto.RecordPaymentRequest{Amount: 999999, Type: "balance"})
	c, w := testContext(t, http.MethodPost, "/api/v1/academic/requests/req-1/payments", body)
	c.Params = gin.Params{{Key: "domain", Value: "academic"}, {Key: "id", Value: "req-1"}}

	handler.RecordPayment(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PAYMENT_EXCEEDS_TOTAL")
}

func TestRequestHandlerExportSetsDisposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{
		exportResp: &service.ExportResult{FileName: "academic-requests.csv", ContentType: "text/csv", Content: []byte("Reference\n")},
	}
	handler := NewRequestHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/api/v1/academic/requests/export?format=csv&status=pending,in_review&search=Awa", nil)
	c.Params = gin.Params{{Key: "domain", Value: "academic"}}

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "academic-requests.csv")
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{"pending", "in_review"}, mockSvc.lastExportQuery.Statuses)
	assert.Equal(t, "Awa", mockSvc.lastExportQuery.Search)
}

func TestRequestHandlerDomains(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceMock{})

	c, w := testContext(t, http.MethodGet, "/api/v1/domains", nil)
	handler.Domains(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "academic")
	assert.Contains(t, w.Body.String(), "travel")
	assert.Contains(t, w.Body.String(), "vapvae")
}
