package research

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/clinicalquery/internal/platform/httperror"
	"github.com/ehr/clinicalquery/internal/platform/payload"
)

const detailInvalidRadius = "Invalid or missing geo.radius_km"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/evidence/search", h.Search)
}

func (h *Handler) Search(c echo.Context) error {
	var req EvidenceSearchRequest
	if _, err := payload.Decode(c, &req); err != nil {
		return payload.ReadError(err)
	}
	h.logger.Info().
		Str("condition", req.Condition.String()).
		Str("comorbidity", req.Comorbidity.String()).
		Msg("evidence search requested")

	q, err := req.Query()
	if err != nil {
		return httperror.New(http.StatusBadRequest, detailInvalidRadius)
	}
	res, err := h.svc.Search(c.Request().Context(), q)
	if err != nil {
		if errors.Is(err, ErrInvalidRadius) {
			return httperror.New(http.StatusBadRequest, detailInvalidRadius)
		}
		return err
	}

	h.logger.Info().
		Float64("radius_km", q.RadiusKm).
		Int("nearby_trials", len(res.NearbyTrials)).
		Msg("returning evidence")
	return c.JSON(http.StatusOK, res)
}
