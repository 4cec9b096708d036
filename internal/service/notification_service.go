package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/excellencepro/dossier-api/internal/dto"
	"github.com/excellencepro/dossier-api/internal/models"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
	"github.com/excellencepro/dossier-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

const jobTypeNotification = "notification.create"

// NotificationService delivers user notifications. Writes triggered by the
// workflow go through a background queue so a slow insert never delays the
// originating request.
type NotificationService struct {
	repo      notificationRepository
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service. Call StartQueue before
// dispatching asynchronous notifications.
func NewNotificationService(repo notificationRepository, validate *validator.Validate, logger *zap.Logger, queueCfg jobs.QueueConfig) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, validator: validate, logger: logger}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	svc.queue = jobs.NewQueue("notifications", svc.handleJob, queueCfg)
	return svc
}

// StartQueue launches the background workers.
func (s *NotificationService) StartQueue(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopQueue drains the background workers.
func (s *NotificationService) StopQueue() {
	s.queue.Stop()
}

// QueueDepth reports the notification backlog for the metrics gauge.
func (s *NotificationService) QueueDepth() int {
	return s.queue.Pending()
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.CreateNotificationRequest)
	if !ok {
		s.logger.Error("notification job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	_, err := s.Create(ctx, req)
	return err
}

// Dispatch queues a notification for background delivery. Failures are
// logged, never propagated to the caller.
func (s *NotificationService) Dispatch(req dto.CreateNotificationRequest) {
	job := jobs.Job{ID: uuid.NewString(), Type: jobTypeNotification, Payload: req}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("user_id", req.UserID), zap.Error(err))
	}
}

// Create validates and persists a notification synchronously.
func (s *NotificationService) Create(ctx context.Context, req dto.CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	switch models.NotificationType(req.Type) {
	case models.NotificationTypeStatus, models.NotificationTypePayment, models.NotificationTypeMessage:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown notification type %q", req.Type))
	}

	notification := &models.Notification{
		UserID:           req.UserID,
		Title:            req.Title,
		Body:             req.Body,
		Type:             models.NotificationType(req.Type),
		Link:             req.Link,
		RequestReference: req.RequestReference,
		Read:             false,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return notification, nil
}

// List returns the caller's notifications with pagination and unread count.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, int, error) {
	filter := models.NotificationFilter{
		UserID:     userID,
		UnreadOnly: query.UnreadOnly,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	notifications, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		return nil, nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return notifications, pagination, unread, nil
}

// UnreadCount returns the caller's number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return unread, nil
}

// MarkRead flips the read flag on one owned notification.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	rows, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// MarkAllRead flips the read flag on every unread notification of the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	rows, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return rows, nil
}
