package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/excellencepro/dossier-api/internal/models"
	"github.com/excellencepro/dossier-api/internal/service"
	appErrors "github.com/excellencepro/dossier-api/pkg/errors"
	"github.com/excellencepro/dossier-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, domainCode, requestID string, actor service.Actor, input service.UploadInput) (*models.Attachment, error)
	List(ctx context.Context, domainCode, requestID string, actor service.Actor) ([]models.Attachment, error)
	SignedLink(ctx context.Context, attachmentID string) (*service.SignedLink, error)
	Download(ctx context.Context, token string) (*models.Attachment, *os.File, error)
	Delete(ctx context.Context, attachmentID string) error
}

// AttachmentHandler exposes the attachment endpoints.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(service attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload godoc
// @Summary Upload a supporting document for a request
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /{domain}/requests/{id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	attachment, err := h.service.Upload(c.Request.Context(), c.Param("domain"), c.Param("id"), actorFromContext(c), service.UploadInput{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Reader:   file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attachment)
}

// List godoc
// @Summary List attachments of a request
// @Tags Attachments
// @Produce json
// @Param domain path string true "Domain code"
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /{domain}/requests/{id}/attachments [get]
func (h *AttachmentHandler) List(c *gin.Context) {
	attachments, err := h.service.List(c.Request.Context(), c.Param("domain"), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attachments, nil)
}

// SignedLink godoc
// @Summary Issue a time-limited download token for an attachment
// @Tags Attachments
// @Produce json
// @Param attachmentID path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Router /attachments/{attachmentID}/link [post]
func (h *AttachmentHandler) SignedLink(c *gin.Context) {
	link, err := h.service.SignedLink(c.Request.Context(), c.Param("attachmentID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download an attachment with a signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter required"))
		return
	}
	attachment, file, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	c.DataFromReader(http.StatusOK, attachment.SizeBytes, attachment.MimeType, file, nil)
}

// Delete godoc
// @Summary Delete an attachment
// @Tags Attachments
// @Produce json
// @Param attachmentID path string true "Attachment ID"
// @Success 204 {object} response.Envelope
// @Router /attachments/{attachmentID} [delete]
func (h *AttachmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("attachmentID")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
