package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
)

type attachmentService interface {
	Open(ctx context.Context, actor shared.Principal, id int64, thumb bool) (io.ReadCloser, Attachment, error)
	Delete(ctx context.Context, actor shared.Principal, id int64) (Attachment, error)
	UploadTo(ctx context.Context, actor shared.Principal, reportID int64, typ Type, up Upload) (Attachment, error)
	MaxBytes() int64
}

// Handler streams and deletes report attachments.
type Handler struct {
	logger  *slog.Logger
	service attachmentService
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service attachmentService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers routes under /attachments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsView))
		r.Get("/{id}", h.download)
		r.Post("/{id}/delete", h.remove)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsSubmit, shared.PermReportsReview))
		r.Post("/report/{reportID}", h.upload)
	})
}

func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	rc, a, err := h.service.Open(r.Context(), actor, id, r.URL.Query().Get("thumb") == "1")
	if err != nil {
		h.fail(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.OriginalName}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream attachment", slog.Int64("attachment_id", id), slog.Any("error", err))
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	a, err := h.service.Delete(r.Context(), actor, id)
	if err != nil {
		if errors.Is(err, shared.ErrForbidden) || errors.Is(err, shared.ErrNotFound) {
			h.fail(w, err)
			return
		}
		h.logger.Error("delete attachment failed", slog.Int64("attachment_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, back(r, "/reports"), "danger", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, back(r, fmt.Sprintf("/reports/%d", a.ReportID)), "success", "Attachment deleted")
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	reportID, ok := parseID(r, "reportID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/reports/%d", reportID)
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxBytes()+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.redirectWithFlash(w, r, target, "danger", ErrTooLarge.SafeMessage())
			return
		}
		h.logger.Warn("parse upload form", slog.Int64("report_id", reportID), slog.Any("error", err))
		h.redirectWithFlash(w, r, target, "danger", "The upload could not be read, try again")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.redirectWithFlash(w, r, target, "warning", "Choose a file to upload")
		return
	}
	defer file.Close()
	actor, _ := shared.PrincipalFromContext(r.Context())
	_, err = h.service.UploadTo(r.Context(), actor, reportID, Type(r.PostFormValue("attachment_type")),
		Upload{Filename: header.Filename, Size: header.Size, Body: file, RequestKey: r.PostFormValue("idempotency_key")})
	if errors.Is(err, shared.ErrAlreadyProcessed) {
		h.redirectWithFlash(w, r, target, "info", "This file was already uploaded")
		return
	}
	if err != nil {
		if errors.Is(err, shared.ErrForbidden) || errors.Is(err, shared.ErrNotFound) {
			h.fail(w, err)
			return
		}
		h.logger.Warn("upload attachment rejected", slog.Int64("report_id", reportID), slog.Any("error", err))
		h.redirectWithFlash(w, r, target, "danger", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, target, "success", "File uploaded")
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.Error(w, "Attachment not found", http.StatusNotFound)
	case errors.Is(err, shared.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		h.logger.Error("attachment request failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// back returns the posted "back" path when it is local, fallback otherwise.
func back(r *http.Request, fallback string) string {
	if next := r.PostFormValue("back"); len(next) > 1 && next[0] == '/' && next[1] != '/' {
		return next
	}
	return fallback
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
