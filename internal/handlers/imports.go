package handlers

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haulstack/fuellens-api/internal/fieldmap"
	"github.com/haulstack/fuellens-api/internal/runs"
	"github.com/haulstack/fuellens-api/internal/services"
	"github.com/haulstack/fuellens-api/internal/tabular"
)

// PresignedURLExpiry is how long a staged-upload URL stays valid.
const PresignedURLExpiry = 15 * time.Minute

// FileArchive stages provider export files in object storage so clients
// can upload via presigned URL and start imports by key.
type FileArchive interface {
	GenerateKey(filename string) (string, error)
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// ImportsHandler exposes the import pipeline over HTTP: start a run from
// an uploaded or staged file, poll its progress, cancel it, read its
// terminal result.
type ImportsHandler struct {
	importer  *services.Importer
	registry  *runs.Registry
	fieldMap  *fieldmap.Map
	validator *services.FileValidator
	archive   FileArchive // nil when staging is not configured
	log       zerolog.Logger
}

// NewImportsHandler creates the import handler. archive may be nil; the
// staged-upload routes then report staging as unavailable.
func NewImportsHandler(importer *services.Importer, registry *runs.Registry, fieldMap *fieldmap.Map, validator *services.FileValidator, archive FileArchive, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		importer:  importer,
		registry:  registry,
		fieldMap:  fieldMap,
		validator: validator,
		archive:   archive,
		log:       log,
	}
}

// StartImportRequest starts an import from a previously staged file.
type StartImportRequest struct {
	FileKey string `json:"file_key"`
}

// StartImport begins an asynchronous import run.
// POST /v1/imports
// Accepts either a multipart "file" field or a JSON body {"file_key": ...}
// referencing a staged upload. Responds 202 with the run id; the run
// continues after the response is sent.
func (h *ImportsHandler) StartImport(c fiber.Ctx) error {
	filename, data, ferr := h.readImportFile(c)
	if ferr != nil {
		return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
	}

	if result := h.validator.Validate(filename, data); !result.Valid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "file rejected",
			"details": result.Errors,
		})
	}

	reader, err := tabular.OpenReader(io.NopCloser(bytes.NewReader(data)), filename)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// The run outlives this request, so it is not tied to the request
	// context.
	run := h.importer.Start(context.Background(), reader, h.fieldMap)
	entry := h.registry.Add(filename, run)

	h.log.Info().Str("run_id", entry.ID.String()).Str("file", filename).
		Msg("import run started")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": entry.ID,
		"file":   filename,
		"state":  run.State().String(),
	})
}

func (h *ImportsHandler) readImportFile(c fiber.Ctx) (string, []byte, *fiber.Error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return "", nil, fiber.NewError(fiber.StatusBadRequest, "failed to open uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
		}
		return fh.Filename, data, nil
	}

	var req StartImportRequest
	if err := c.Bind().JSON(&req); err != nil || req.FileKey == "" {
		return "", nil, fiber.NewError(fiber.StatusBadRequest, "either a multipart file or a file_key is required")
	}
	if h.archive == nil {
		return "", nil, fiber.NewError(fiber.StatusBadRequest, "file staging is not configured")
	}
	rc, err := h.archive.Fetch(c.Context(), req.FileKey)
	if err != nil {
		return "", nil, fiber.NewError(fiber.StatusNotFound, "staged file not found")
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fiber.NewError(fiber.StatusBadRequest, "failed to read staged file")
	}
	return filepath.Base(req.FileKey), data, nil
}

// GetImport reports a run's state, latest progress and, once terminal,
// its result or failure cause.
// GET /v1/imports/:id
func (h *ImportsHandler) GetImport(c fiber.Ctx) error {
	entry, ferr := h.lookup(c)
	if ferr != nil {
		return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
	}

	state := entry.Run.State()
	progress := entry.Run.Progress()
	resp := fiber.Map{
		"run_id":     entry.ID,
		"file":       entry.FileName,
		"started_at": entry.StartedAt,
		"state":      state.String(),
		"progress":   progress,
	}
	if result := entry.Run.Result(); result != nil {
		resp["result"] = result
	}
	if runErr := entry.Run.Err(); runErr != nil {
		resp["error"] = runErr.Error()
	}
	return c.JSON(resp)
}

// ListImports lists known runs, most recent first.
// GET /v1/imports
func (h *ImportsHandler) ListImports(c fiber.Ctx) error {
	entries := h.registry.List()
	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, fiber.Map{
			"run_id":     e.ID,
			"file":       e.FileName,
			"started_at": e.StartedAt,
			"state":      e.Run.State().String(),
		})
	}
	return c.JSON(fiber.Map{"imports": out})
}

// CancelImport requests cooperative cancellation of a run. Cancelling an
// already-terminal run is a no-op.
// POST /v1/imports/:id/cancel
func (h *ImportsHandler) CancelImport(c fiber.Ctx) error {
	entry, ferr := h.lookup(c)
	if ferr != nil {
		return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
	}
	entry.Run.Cancel()
	h.log.Info().Str("run_id", entry.ID.String()).Msg("cancellation requested")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": entry.ID,
		"state":  entry.Run.State().String(),
	})
}

// GetPresignedURL hands out a presigned PUT URL for staging an export file.
// GET /v1/imports/presigned-url?filename=...&content_type=...
func (h *ImportsHandler) GetPresignedURL(c fiber.Ctx) error {
	if h.archive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "file staging is not configured",
		})
	}

	filename := c.Query("filename")
	contentType := c.Query("content_type")
	if filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "filename is required",
		})
	}
	if err := h.validator.ValidateFilename(filename); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	key, err := h.archive.GenerateKey(filename)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate file key",
		})
	}
	url, err := h.archive.PresignUpload(c.Context(), key, contentType, PresignedURLExpiry)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to generate presigned URL",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"upload_url": url,
		"file_key":   key,
		"expires_in": int(PresignedURLExpiry.Seconds()),
	})
}

func (h *ImportsHandler) lookup(c fiber.Ctx) (*runs.Entry, *fiber.Error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid run id")
	}
	entry, err := h.registry.Get(id)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "import run not found")
	}
	return entry, nil
}
