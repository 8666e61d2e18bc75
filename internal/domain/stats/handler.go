package stats

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/covercheck/covercheck/internal/platform/auth"
)

// ChartRenderer turns a ranked result set into an embeddable image
// payload. An empty row set yields an empty data URI, not an error.
type ChartRenderer interface {
	DataURI(rows []DiseaseMetricRow, title string, basis SortBasis, yearStart, yearEnd int, compact bool) string
}

type Handler struct {
	svc    *Service
	charts ChartRenderer
}

func NewHandler(svc *Service, charts ChartRenderer) *Handler {
	return &Handler{svc: svc, charts: charts}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/stats", auth.RequireRole(auth.RoleFC, auth.RoleAdmin))
	g.GET("/years", h.GetYearRange)
	g.GET("/top", h.GetTopDiseases)
	g.GET("/future", h.GetFutureDiseases)
}

func (h *Handler) GetYearRange(c echo.Context) error {
	yr, err := h.svc.DataYearRange(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "disease-cost store query failed")
	}
	return c.JSON(http.StatusOK, yr)
}

type rankedResponse struct {
	Scope    QueryScope         `json:"scope"`
	Rows     []DiseaseMetricRow `json:"rows"`
	Chart    string             `json:"chart,omitempty"`
	Emerging []DiseaseMetricRow `json:"emerging,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// queryFailed keeps the response shape intact on a store failure so
// clients always find a rows array, with the diagnostic alongside.
func queryFailed(c echo.Context, scope QueryScope) error {
	return c.JSON(http.StatusBadGateway, rankedResponse{
		Scope: scope,
		Rows:  []DiseaseMetricRow{},
		Error: "disease-cost store query failed",
	})
}

func (h *Handler) GetTopDiseases(c echo.Context) error {
	scope, err := ScopeFromQuery(c)
	if err != nil {
		return err
	}

	rows, qerr := h.svc.TopDiseases(c.Request().Context(), scope)
	if qerr != nil {
		return queryFailed(c, scope.Normalize())
	}

	resp := rankedResponse{Scope: scope.Normalize(), Rows: rows}
	if resp.Rows == nil {
		resp.Rows = []DiseaseMetricRow{}
	}
	if h.charts != nil {
		resp.Chart = h.charts.DataURI(rows, chartTitle(c, "current"), scope.SortBasis,
			resp.Scope.YearStart, resp.Scope.YearEnd, compactFlag(c))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetFutureDiseases(c echo.Context) error {
	scope, err := ScopeFromQuery(c)
	if err != nil {
		return err
	}
	currentBand := scope.AgeGroups[0]

	ctx := c.Request().Context()
	current, qerr := h.svc.TopDiseases(ctx, scope)
	if qerr != nil {
		return queryFailed(c, scope.Normalize())
	}
	future, qerr := h.svc.FutureTopDiseases(ctx, scope, currentBand)
	if qerr != nil {
		return queryFailed(c, scope.Normalize())
	}

	resp := rankedResponse{
		Scope:    scope.Normalize(),
		Rows:     future,
		Emerging: PickEmergingRows(current, future, scope.Normalize().Limit),
	}
	if resp.Rows == nil {
		resp.Rows = []DiseaseMetricRow{}
	}
	if h.charts != nil {
		resp.Chart = h.charts.DataURI(future, chartTitle(c, "future"), scope.SortBasis,
			resp.Scope.YearStart, resp.Scope.YearEnd, compactFlag(c))
	}
	return c.JSON(http.StatusOK, resp)
}

// ScopeFromQuery builds a QueryScope from request parameters. Years
// and the sort basis are corrected locally (swap, default) rather
// than rejected; missing demographics are the caller's error.
func ScopeFromQuery(c echo.Context) (QueryScope, error) {
	yearStart, err := strconv.Atoi(c.QueryParam("year_start"))
	if err != nil || yearStart <= 0 {
		return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "year_start must be a positive integer")
	}
	yearEnd, err := strconv.Atoi(c.QueryParam("year_end"))
	if err != nil || yearEnd <= 0 {
		return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "year_end must be a positive integer")
	}

	band := strings.TrimSpace(c.QueryParam("age_band"))
	if !ValidAgeBand(band) {
		return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "unknown age_band")
	}

	sex := strings.ToUpper(strings.TrimSpace(c.QueryParam("sex")))
	if sex != SexMale && sex != SexFemale {
		return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "sex must be M or F")
	}

	scope := QueryScope{
		YearStart: yearStart,
		YearEnd:   yearEnd,
		AgeGroups: []string{band},
		Sex:       sex,
		SortBasis: ParseSortBasis(c.QueryParam("sort_basis")),
	}

	if v := c.QueryParam("min_prevalence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "min_prevalence must be a non-negative number")
		}
		scope.MinPrevalencePer100k = f
	}
	// The threshold arrives in the medium display unit the UI shows.
	if v := c.QueryParam("min_cost_per_patient"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "min_cost_per_patient must be a non-negative number")
		}
		scope.MinCostPerPatientNative = ToNativeFromMediumUnit(f)
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 20 {
			return QueryScope{}, echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 20")
		}
		scope.Limit = n
	}
	return scope, nil
}

func chartTitle(c echo.Context, kind string) string {
	if t := strings.TrimSpace(c.QueryParam("title")); t != "" {
		return t
	}
	if kind == "future" {
		return "Top diseases at future ages"
	}
	return "Top diseases for your age group"
}

func compactFlag(c echo.Context) bool {
	return c.QueryParam("compact") == "true"
}
