package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/excellencepro/dossier-api/internal/models"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
	"github.com/excellencepro/dossier-api/pkg/storage"
)

type attachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	ListByRequest(ctx context.Context, domain models.DomainCode, requestID string) ([]models.Attachment, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// RequestLookup resolves a request within one domain.
type RequestLookup interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
}

// AttachmentLimits constrain uploads.
type AttachmentLimits struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// UploadInput carries one incoming file.
type UploadInput struct {
	FileName string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// SignedLink is a time-limited download token for an attachment.
type SignedLink struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// AttachmentService stores supporting documents on local storage and hands
// out signed download tokens.
type AttachmentService struct {
	repo     attachmentRepository
	requests map[models.DomainCode]RequestLookup
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	audits   auditWriter
	limits   AttachmentLimits
	logger   *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(
	repo attachmentRepository,
	requests map[models.DomainCode]RequestLookup,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	audits auditWriter,
	limits AttachmentLimits,
	logger *zap.Logger,
) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxFileSizeBytes <= 0 {
		limits.MaxFileSizeBytes = 10 << 20
	}
	return &AttachmentService{
		repo:     repo,
		requests: requests,
		store:    store,
		signer:   signer,
		audits:   audits,
		limits:   limits,
		logger:   logger,
	}
}

func (s *AttachmentService) allowedMIME(mime string) bool {
	if len(s.limits.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.limits.AllowedMIMEs {
		if allowed == mime {
			return true
		}
	}
	return false
}

// resolveRequest loads a request and enforces that CLIENT actors only touch
// their own requests. Staff roles may touch any.
func (s *AttachmentService) resolveRequest(ctx context.Context, domainCode, requestID string, actor Actor) (*models.DomainConfig, *models.Request, error) {
	cfg, ok := models.DomainByCode(domainCode)
	if !ok {
		return nil, nil, appErrors.ErrUnknownDomain
	}
	checker, ok := s.requests[cfg.Code]
	if !ok {
		return nil, nil, appErrors.ErrUnknownDomain
	}
	request, err := checker.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if actor.Role == models.RoleClient {
		if request.UserID == nil || *request.UserID != actor.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "request does not belong to user")
		}
	}
	return cfg, request, nil
}

// Upload validates and stores one file against an existing request.
func (s *AttachmentService) Upload(ctx context.Context, domainCode, requestID string, actor Actor, input UploadInput) (*models.Attachment, error) {
	cfg, _, err := s.resolveRequest(ctx, domainCode, requestID, actor)
	if err != nil {
		return nil, err
	}

	if input.Size > s.limits.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrAttachmentTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", s.limits.MaxFileSizeBytes))
	}
	if !s.allowedMIME(input.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMIME, fmt.Sprintf("mime type %q not allowed", input.MimeType))
	}

	storedPath := filepath.Join(string(cfg.Code), requestID, uuid.NewString()+"-"+filepath.Base(input.FileName))
	if _, err := s.store.SaveStream(storedPath, io.LimitReader(input.Reader, s.limits.MaxFileSizeBytes+1)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	attachment := &models.Attachment{
		Domain:     cfg.Code,
		RequestID:  requestID,
		FileName:   filepath.Base(input.FileName),
		StoredPath: storedPath,
		MimeType:   input.MimeType,
		SizeBytes:  input.Size,
	}
	if actor.UserID != "" {
		uploadedBy := actor.UserID
		attachment.UploadedBy = &uploadedBy
	}
	if err := s.repo.Create(ctx, attachment); err != nil {
		if removeErr := s.store.Delete(storedPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned attachment file", zap.String("path", storedPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attachment")
	}

	if s.audits != nil {
		resourceID := attachment.ID
		entry := &models.AuditLog{
			Action:     models.AuditActionAttachmentUpload,
			Resource:   string(cfg.Code) + "_request",
			ResourceID: &resourceID,
			NewValues:  []byte(fmt.Sprintf(`{"file_name":%q,"size":%s}`, attachment.FileName, strconv.FormatInt(attachment.SizeBytes, 10))),
			IPAddress:  actor.IP,
			UserAgent:  actor.UserAgent,
		}
		if actor.UserID != "" {
			userID := actor.UserID
			entry.UserID = &userID
		}
		if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to write attachment audit log", zap.Error(err))
		}
	}
	return attachment, nil
}

// List returns the attachments of one request.
func (s *AttachmentService) List(ctx context.Context, domainCode, requestID string, actor Actor) ([]models.Attachment, error) {
	cfg, _, err := s.resolveRequest(ctx, domainCode, requestID, actor)
	if err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListByRequest(ctx, cfg.Code, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return attachments, nil
}

// SignedLink issues a time-limited download token for an attachment.
func (s *AttachmentService) SignedLink(ctx context.Context, attachmentID string) (*SignedLink, error) {
	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	token, expiresAt, err := s.signer.Generate(attachment.ID, attachment.StoredPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &SignedLink{Token: token, ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")}, nil
}

// Download validates a signed token and opens the underlying file.
func (s *AttachmentService) Download(ctx context.Context, token string) (*models.Attachment, *os.File, error) {
	attachmentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	if attachment.StoredPath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match attachment")
	}
	file, err := s.store.Open(attachment.StoredPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	return attachment, file, nil
}

// Delete removes an attachment record and its stored file.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID string) error {
	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	rows, err := s.repo.Delete(ctx, attachmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attachment")
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	if err := s.store.Delete(attachment.StoredPath); err != nil {
		s.logger.Warn("failed to delete stored attachment file", zap.String("path", attachment.StoredPath), zap.Error(err))
	}
	return nil
}
