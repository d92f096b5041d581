package handlers

import (
	"errors"
	"net/http"
	"strings"

	"sabore-analytics/internal/export"
	"sabore-analytics/internal/orders"
	"sabore-analytics/internal/reports"
	"sabore-analytics/pkg/response"

	"go.uber.org/zap"
)

// snapshot returns the current report for the request, regenerating and
// announcing it when refresh=true.
func (h *Handler) snapshot(r *http.Request) (reports.Snapshot, error) {
	q, err := h.readQuery(r)
	if err != nil {
		return reports.Snapshot{}, err
	}
	if readBool(r, "refresh") {
		return h.Reports.Generate(r.Context(), q, true)
	}
	return h.Reports.Current(r.Context(), q)
}

func (h *Handler) TextReport(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		h.writeError(w, r, err, "format report")
		return
	}
	response.Text(w, http.StatusOK, string(export.Text(h.Reports.Document(snap))))
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err, "export report")
		return
	}
	snap, err := h.snapshot(r)
	if err != nil {
		h.writeError(w, r, err, "export report")
		return
	}
	h.sendExport(w, r, snap, format)
}

func (h *Handler) sendExport(w http.ResponseWriter, r *http.Request, snap reports.Snapshot, format export.Format) {
	body, doc, err := h.Reports.Export(snap, format)
	if err != nil {
		h.writeError(w, r, err, "export report")
		return
	}
	response.Attachment(w, doc.Filename(format), format.ContentType(), body)
}

func (h *Handler) ArchiveCreate(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err, "archive report")
		return
	}
	snap, err := h.snapshot(r)
	if err != nil {
		h.writeError(w, r, err, "archive report")
		return
	}
	archived, err := h.Reports.ArchiveSnapshot(r.Context(), snap, format)
	if err != nil {
		h.writeError(w, r, err, "archive report")
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    archived,
	})
}

func (h *Handler) ArchiveList(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := orders.ParseScope(r.URL.Query().Get("restaurantId"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "restaurantId must be an integer")
		return
	}
	entries, err := h.Reports.ListArchive(r.Context(), restaurantID)
	if err != nil {
		h.writeError(w, r, err, "list archive")
		return
	}
	response.Success(w, map[string]any{
		"scope":   orders.Scope(restaurantID),
		"reports": entries,
	})
}

// Analyze builds a report over an uploaded .xlsx or .csv file sent as the
// multipart field "file". With ?format= the report is returned as an export.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var format export.Format
	if raw := strings.TrimSpace(r.URL.Query().Get("format")); raw != "" {
		parsed, err := export.ParseFormat(raw)
		if err != nil {
			h.writeError(w, r, err, "analyze upload")
			return
		}
		format = parsed
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadSize)
	if err := r.ParseMultipartForm(h.Config.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Uploaded file is too large")
			return
		}
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	raw, err := orders.ParseSpreadsheet(header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrUnsupportedFile):
			response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE", err.Error())
		case errors.Is(err, orders.ErrEmptySheet), errors.Is(err, orders.ErrMissingColumns):
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_SHEET", err.Error())
		default:
			h.Logger.Warn("upload parse failed", zap.String("file", header.Filename), zapError(err))
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_SHEET", "Failed to read the uploaded file")
		}
		return
	}

	snap := h.Reports.Analyze(raw, "upload:"+header.Filename)
	h.Logger.Info("upload analyzed",
		zap.String("file", header.Filename),
		zap.Int("orders", len(raw)),
		zap.Int("skipped", snap.Skipped),
	)
	if format != "" {
		h.sendExport(w, r, snap, format)
		return
	}
	response.Success(w, snap)
}
