package clinical

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/clinicalquery/internal/platform/httperror"
)

const (
	detailPatientNotFound = "Patient not found"
	detailNoLabHistory    = "Patient not found or no lab history"
)

// LabsResponse is the body of GET /patients/:patientId/labs.
type LabsResponse struct {
	PatientID string           `json:"patient_id"`
	Labs      []LabObservation `json:"labs"`
}

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/:patientId/summary", h.GetSummary)
	g.GET("/patients/:patientId/labs", h.GetLabs)
}

func (h *Handler) GetSummary(c echo.Context) error {
	patientID := c.Param("patientId")
	h.logger.Info().Str("patient_id", patientID).Msg("patient summary requested")

	summary, err := h.svc.GetSummary(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			h.logger.Info().Str("patient_id", patientID).Msg("patient not found")
			return httperror.New(http.StatusNotFound, detailPatientNotFound)
		}
		return err
	}

	h.logger.Info().
		Str("patient_id", patientID).
		Strs("problems", summary.Problems).
		Msg("returning patient summary")
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetLabs(c echo.Context) error {
	patientID := c.Param("patientId")
	rawNames := c.QueryParam("names")
	rawLastN := c.QueryParam("last_n")
	h.logger.Info().
		Str("patient_id", patientID).
		Str("names", rawNames).
		Str("last_n", rawLastN).
		Msg("lab history requested")

	q := LabQuery{Names: ParseNames(rawNames), LastN: parseLastN(rawLastN)}

	labs, err := h.svc.QueryLabs(c.Request().Context(), patientID, q)
	switch {
	case errors.Is(err, ErrPatientNotFound):
		h.logger.Info().Str("patient_id", patientID).Msg("patient not found or no lab history")
		return httperror.New(http.StatusNotFound, detailNoLabHistory)
	case errors.Is(err, ErrInvalidLastN):
		return httperror.New(http.StatusUnprocessableEntity, ErrInvalidLastN.Error())
	case err != nil:
		return err
	}

	h.logger.Info().
		Str("patient_id", patientID).
		Int("count", len(labs)).
		Msg("returning labs")
	return c.JSON(http.StatusOK, LabsResponse{PatientID: patientID, Labs: labs})
}

// parseLastN returns nil, meaning no truncation, for an empty or
// non-integer value.
func parseLastN(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}
