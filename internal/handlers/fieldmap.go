package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/haulstack/fuellens-api/internal/fieldmap"
	"github.com/haulstack/fuellens-api/internal/utils"
)

// FieldMapHandler exposes the editable field→header mapping. Persistence
// goes through the injected save function so the handler does not care
// where the mapping lives on disk.
type FieldMapHandler struct {
	fieldMap *fieldmap.Map
	save     func(*fieldmap.Map) error
	log      zerolog.Logger
}

// NewFieldMapHandler creates the field-map handler. save may be nil when
// the mapping should not be persisted (tests).
func NewFieldMapHandler(fieldMap *fieldmap.Map, save func(*fieldmap.Map) error, log zerolog.Logger) *FieldMapHandler {
	return &FieldMapHandler{fieldMap: fieldMap, save: save, log: log}
}

// GetFieldMap returns the current field→header association.
// GET /v1/fieldmap
func (h *FieldMapHandler) GetFieldMap(c fiber.Ctx) error {
	return utils.SuccessResponse(c, h.fieldMap.Headers())
}

// UpdateFieldMap overrides the expected header for one or more fields.
// PUT /v1/fieldmap with a JSON object of field name → header text.
func (h *FieldMapHandler) UpdateFieldMap(c fiber.Ctx) error {
	var req map[string]string
	if err := c.Bind().JSON(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "no fields supplied")
	}

	for name := range req {
		if !fieldmap.IsKnown(fieldmap.Field(name)) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "unknown field: "+name)
		}
	}
	for name, header := range req {
		h.fieldMap.Set(fieldmap.Field(name), header)
	}

	if err := h.persist(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to persist field map")
	}
	return utils.SuccessResponse(c, h.fieldMap.Headers())
}

// ResetFieldMap restores the built-in defaults.
// POST /v1/fieldmap/reset
func (h *FieldMapHandler) ResetFieldMap(c fiber.Ctx) error {
	h.fieldMap.Reset()
	if err := h.persist(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to persist field map")
	}
	return utils.SuccessResponse(c, h.fieldMap.Headers())
}

func (h *FieldMapHandler) persist() error {
	if h.save == nil {
		return nil
	}
	if err := h.save(h.fieldMap); err != nil {
		h.log.Error().Err(err).Msg("failed to persist field map")
		return err
	}
	return nil
}
