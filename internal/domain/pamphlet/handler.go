package pamphlet

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/covercheck/covercheck/internal/domain/stats"
	"github.com/covercheck/covercheck/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pamphlet", auth.RequireRole(auth.RoleFC, auth.RoleAdmin))
	g.GET("/context", h.GetContext)
}

// GetContext returns the full computed pamphlet data model for the
// presentation collaborator.
func (h *Handler) GetContext(c echo.Context) error {
	consultant := auth.ConsultantFromContext(c.Request().Context())
	if consultant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no consultant on request")
	}

	scope, err := stats.ScopeFromQuery(c)
	if err != nil {
		return err
	}

	customer := Customer{
		Name:    strings.TrimSpace(c.QueryParam("customer_name")),
		Sex:     scope.Sex,
		AgeBand: scope.AgeGroups[0],
	}

	pctx, err := h.svc.BuildContext(c.Request().Context(), *consultant, customer, scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "disease-cost store query failed")
	}
	return c.JSON(http.StatusOK, pctx)
}
