// Package handler exposes the import pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/zyxiao/pocketledger/internal/api"
	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/internal/domain/importer/extractor"
	"github.com/zyxiao/pocketledger/internal/domain/importer/reader"
	"github.com/zyxiao/pocketledger/internal/domain/importer/repository"
	"github.com/zyxiao/pocketledger/internal/domain/importer/service"
)

const maxUploadBytes = 32 << 20

type ImportHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewImportHandler(svc *service.Service, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, logger: logger}
}

// Routes mounts the import endpoints.
func (h *ImportHandler) Routes(r chi.Router) {
	r.Post("/imports", h.Upload)
	r.Get("/imports", h.History)
}

// Upload accepts a multipart export file plus a channel field and runs
// the import synchronously. The upload is spooled to a temp file so the
// extractor can sniff extensions and re-read as needed.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		api.Observe("imports", http.StatusBadRequest)
		return
	}

	ch := expense.Channel(r.FormValue("channel"))
	if ch != expense.ChannelWeChatPay && ch != expense.ChannelAlipay {
		api.Error(w, http.StatusBadRequest, "channel must be wechat_pay or alipay")
		api.Observe("imports", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "missing file field")
		api.Observe("imports", http.StatusBadRequest)
		return
	}
	defer file.Close()

	path, cleanup, err := h.spool(file, header.Filename)
	if err != nil {
		h.logger.Error("failed to spool upload", slog.Any("error", err))
		api.Error(w, http.StatusInternalServerError, "failed to store upload")
		api.Observe("imports", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	sum, err := h.svc.ImportFile(r.Context(), path, ch)
	status := h.statusFor(err)
	api.JSON(w, status, sum)
	api.Observe("imports", status)
}

// History returns recent import audit rows.
func (h *ImportHandler) History(w http.ResponseWriter, r *http.Request) {
	audits, err := h.svc.History(r.Context(), api.QueryInt(r, "limit", 50))
	if err != nil {
		h.logger.Error("failed to list import history", slog.Any("error", err))
		api.Error(w, http.StatusInternalServerError, "failed to list import history")
		api.Observe("imports", http.StatusInternalServerError)
		return
	}
	if audits == nil {
		audits = []repository.Audit{}
	}
	api.JSON(w, http.StatusOK, audits)
	api.Observe("imports", http.StatusOK)
}

// spool copies the upload into a temp file that keeps the original
// extension.
func (h *ImportHandler) spool(src io.Reader, name string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "pocketledger-upload-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = "upload.csv"
	}
	path := filepath.Join(dir, base)

	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// statusFor maps an import outcome to an HTTP status. Unreadable or
// malformed files are the client's problem; storage failures are ours.
func (h *ImportHandler) statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, reader.ErrFileNotFound),
		errors.Is(err, reader.ErrUndecodable),
		errors.Is(err, extractor.ErrHeaderNotFound),
		errors.Is(err, extractor.ErrMissingColumn),
		errors.Is(err, extractor.ErrUnsupportedChannel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
