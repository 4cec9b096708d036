package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/excellencepro/dossier-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func academicRepo(db *sqlx.DB) *RequestRepository {
	cfg, _ := models.DomainByCode("academic")
	return NewRequestRepository(db, cfg)
}

func TestRequestRepositoryCreateWritesInitialHistory(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_request_status_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request := &models.Request{
		Reference:     "REF-20260827-0001",
		FullName:      "Awa Diop",
		Phone:         "+221770000001",
		Email:         "awa@example.com",
		Category:      "MASTER",
		Subcategory:   "MEMOIRE_MASTER",
		TotalAmount:   180000,
		AdvanceAmount: 90000,
		BalanceDue:    180000,
		Status:        models.StatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCreateRollsBackOnHistoryFailure(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_request_status_history")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Request{
		Reference: "REF-20260827-0002",
		FullName:  "Moussa Ba",
		Phone:     "+221770000002",
		Email:     "moussa@example.com",
		Category:  "BTS",
		Status:    models.StatusPending,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByReference(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	rows := sqlmock.NewRows([]string{
		"id", "reference", "user_id", "full_name", "phone", "email", "category", "subcategory", "details",
		"total_amount", "advance_amount", "amount_paid", "balance_due", "status", "created_at", "updated_at",
	}).AddRow("req-1", "REF-20260827-0001", nil, "Awa Diop", "+221770000001", "awa@example.com",
		"MASTER", "MEMOIRE_MASTER", []byte(`{}`), 180000, 90000, 0, 180000, "pending", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, reference, user_id")).
		WithArgs("REF-20260827-0001").
		WillReturnRows(rows)

	found, err := repo.GetByReference(context.Background(), "REF-20260827-0001")
	require.NoError(t, err)
	require.Equal(t, "req-1", found.ID)
	require.Equal(t, models.StatusPending, found.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, reference, user_id")).
		WithArgs("REF-00000000-0000").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByReference(context.Background(), "REF-00000000-0000")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryTransitionGuarded(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_request_status_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := repo.Transition(context.Background(), TransitionParams{
		RequestID: "req-1",
		From:      models.StatusPending,
		To:        models.StatusInWriting,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusInWriting, entry.NewStatus)
	require.NotNil(t, entry.OldStatus)
	require.Equal(t, models.StatusPending, *entry.OldStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryTransitionConflict(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), TransitionParams{
		RequestID: "req-1",
		From:      models.StatusPending,
		To:        models.StatusInfoReceived,
	})
	require.ErrorIs(t, err, ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryRecordPaymentCompleted(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_amount, amount_paid FROM academic_requests")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "amount_paid"}).AddRow(180000, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_request_payments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_requests SET amount_paid")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, err := repo.RecordPayment(context.Background(), PaymentParams{
		RequestID: "req-1",
		Amount:    90000,
		Type:      models.PaymentTypeAdvance,
		Status:    models.PaymentStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, int64(90000), payment.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryRecordPaymentExceedsTotal(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_amount, amount_paid FROM academic_requests")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "amount_paid"}).AddRow(180000, 150000))
	mock.ExpectRollback()

	_, err := repo.RecordPayment(context.Background(), PaymentParams{
		RequestID: "req-1",
		Amount:    50000,
		Type:      models.PaymentTypeBalance,
		Status:    models.PaymentStatusCompleted,
	})
	require.ErrorIs(t, err, ErrPaymentExceedsTotal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryRecordPaymentFailedSkipsBalanceUpdate(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_amount, amount_paid FROM academic_requests")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "amount_paid"}).AddRow(180000, 180000))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO academic_request_payments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	payment, err := repo.RecordPayment(context.Background(), PaymentParams{
		RequestID: "req-1",
		Amount:    10000,
		Type:      models.PaymentTypeBalance,
		Status:    models.PaymentStatusFailed,
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := academicRepo(db)
	rows := sqlmock.NewRows([]string{
		"id", "reference", "user_id", "full_name", "phone", "email", "category", "subcategory", "details",
		"total_amount", "advance_amount", "amount_paid", "balance_due", "status", "created_at", "updated_at",
	}).AddRow("req-1", "REF-20260827-0001", nil, "Awa Diop", "+221770000001", "awa@example.com",
		"MASTER", "MEMOIRE_MASTER", []byte(`{}`), 180000, 90000, 90000, 90000, "in_writing", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, reference, user_id")).
		WithArgs("in_writing", "%awa%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("in_writing", "%awa%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.RequestFilter{
		Statuses: []models.RequestStatus{models.StatusInWriting},
		Search:   "Awa",
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "REF-20260827-0001", list[0].Reference)
	require.NoError(t, mock.ExpectationsWereMet())
}
