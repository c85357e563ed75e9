package medication

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/clinicalquery/internal/platform/httperror"
	"github.com/ehr/clinicalquery/internal/platform/payload"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/orders/medication", h.CreateOrder)
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req MedicationOrderRequest
	wellFormed, err := payload.Decode(c, &req)
	if err != nil {
		return payload.ReadError(err)
	}
	if !wellFormed {
		h.logger.Debug().Msg("medication order body is not a JSON object; treating as empty")
	}
	h.logger.Info().
		Str("patient_id", req.PatientID.String()).
		Str("medication", req.Medication.String()).
		Msg("medication order received")

	res, err := h.svc.CreateOrder(c.Request().Context(), req)
	if err != nil {
		var mf *MissingFieldsError
		if errors.As(err, &mf) {
			h.logger.Info().Str("missing", strings.Join(mf.Fields, ", ")).Msg("medication order missing fields")
			return httperror.New(http.StatusBadRequest, mf.Error())
		}
		return err
	}

	h.logger.Info().Str("order_id", res.OrderID).Msg("draft medication order created")
	return c.JSON(http.StatusCreated, res)
}
