package publication

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/covercheck/covercheck/internal/platform/auth"
	"github.com/covercheck/covercheck/internal/platform/blobstore"
	"github.com/covercheck/covercheck/pkg/pagination"
)

// maxArchiveCodes caps how many publications one archive request may bundle.
const maxArchiveCodes = 20

type Handler struct {
	svc *Service
}

func splitCodes(raw string) []string {
	var codes []string
	for _, part := range strings.Split(raw, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/publications", auth.RequireRole(auth.RoleFC, auth.RoleAdmin))
	g.POST("", h.Publish)
	g.GET("", h.List)
	g.GET("/archive", h.BulkDownload)
	g.GET("/:code", h.Get)
	g.GET("/:code/download", h.Download)

	admin := api.Group("/publications", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/:code/events", h.ListEvents)
}

// Publish accepts the final PDF as a multipart upload plus the query
// context, and returns the compliance code on success.
func (h *Handler) Publish(c echo.Context) error {
	consultant := auth.ConsultantFromContext(c.Request().Context())
	if consultant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no consultant on request")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing pamphlet file")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable pamphlet file")
	}
	defer f.Close()
	pdf, err := io.ReadAll(io.LimitReader(f, blobstore.MaxArtifactSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable pamphlet file")
	}

	req := PublishRequest{
		ConsultantID:    consultant.FCCode,
		ConsultantName:  consultant.Name,
		CustomerName:    strings.TrimSpace(c.FormValue("customer_name")),
		CustomerSex:     c.FormValue("customer_sex"),
		CustomerAgeBand: c.FormValue("customer_age_band"),
		SortBasis:       c.FormValue("sort_basis"),
		Filename:        fileHeader.Filename,
	}
	req.YearStart, _ = strconv.Atoi(c.FormValue("year_start"))
	req.YearEnd, _ = strconv.Atoi(c.FormValue("year_end"))
	req.MinPrevalencePer100k, _ = strconv.ParseFloat(c.FormValue("min_prevalence"), 64)
	req.MinCostPerPatient, _ = strconv.ParseFloat(c.FormValue("min_cost_per_patient"), 64)
	if req.YearStart <= 0 || req.YearEnd <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "year_start and year_end are required")
	}

	rec, err := h.svc.Publish(c.Request().Context(), req, pdf)
	switch {
	case errors.Is(err, blobstore.ErrArtifactTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "pamphlet file too large")
	case errors.Is(err, ErrArtifactStorage):
		return echo.NewHTTPError(http.StatusBadGateway, "could not store artifact")
	case errors.Is(err, ErrAuditWrite):
		return echo.NewHTTPError(http.StatusInternalServerError, "artifact stored but not registered, contact an operator")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) List(c echo.Context) error {
	consultant := auth.ConsultantFromContext(c.Request().Context())
	if consultant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no consultant on request")
	}

	consultantID := consultant.FCCode
	if consultant.Role == auth.RoleAdmin {
		if q := c.QueryParam("consultant_id"); q != "" {
			consultantID = q
		}
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), consultantID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list publications failed")
	}
	if items == nil {
		items = []*PublicationRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	consultant := auth.ConsultantFromContext(c.Request().Context())
	if consultant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no consultant on request")
	}

	rec, err := h.fetchOwned(c, consultant)
	if err != nil {
		return err
	}

	eventType := EventView
	if consultant.Role == auth.RoleAdmin {
		eventType = EventAdminView
	}
	h.svc.RecordEvent(c.Request().Context(), rec.ComplianceCode, eventType, actorType(consultant), actorID(consultant))
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Download(c echo.Context) error {
	consultant := auth.ConsultantFromContext(c.Request().Context())
	if consultant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no consultant on request")
	}

	rec, err := h.fetchOwned(c, consultant)
	if err != nil {
		return err
	}

	data, contentType, err := h.svc.Download(c.Request().Context(), rec)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "artifact missing from storage")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "artifact fetch failed")
	}

	h.svc.RecordEvent(c.Request().Context(), rec.ComplianceCode, EventDownload, actorType(consultant), actorID(consultant))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+rec.ComplianceCode+`.pdf"`)
	return c.Blob(http.StatusOK, contentType, data)
}

func (h *Handler) ListEvents(c echo.Context) error {
	code := c.Param("code")
	p := pagination.FromContext(c)

	events, total, err := h.svc.Events(c.Request().Context(), code, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list events failed")
	}
	if events == nil {
		events = []*AuditEvent{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, p.Limit, p.Offset))
}

// BulkDownload streams a zip archive of up to maxArchiveCodes owned
// publications, one PDF entry per compliance code.
func (h *Handler) BulkDownload(c echo.Context) error {
	consultant := auth.ConsultantFromContext(c.Request().Context())
	if consultant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no consultant on request")
	}

	codes := splitCodes(c.QueryParam("codes"))
	if len(codes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "codes parameter is required")
	}
	if len(codes) > maxArchiveCodes {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("at most %d codes per archive", maxArchiveCodes))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, code := range codes {
		rec, err := h.fetchOwnedCode(c, consultant, code)
		if err != nil {
			return err
		}
		data, _, err := h.svc.Download(c.Request().Context(), rec)
		if err != nil {
			if errors.Is(err, blobstore.ErrBlobNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "artifact missing from storage: "+code)
			}
			return echo.NewHTTPError(http.StatusBadGateway, "artifact fetch failed: "+code)
		}
		w, err := zw.Create(rec.ComplianceCode + ".pdf")
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "archive write failed")
		}
		if _, err := w.Write(data); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "archive write failed")
		}
		h.svc.RecordEvent(c.Request().Context(), rec.ComplianceCode, EventBulkDownload, actorType(consultant), actorID(consultant))
	}
	if err := zw.Close(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "archive write failed")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="publications.zip"`)
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

// fetchOwned loads a record and enforces that FCs only see their own
// publications; admins see everything.
func (h *Handler) fetchOwned(c echo.Context, consultant *auth.Consultant) (*PublicationRecord, error) {
	return h.fetchOwnedCode(c, consultant, c.Param("code"))
}

func (h *Handler) fetchOwnedCode(c echo.Context, consultant *auth.Consultant, code string) (*PublicationRecord, error) {
	rec, err := h.svc.Get(c.Request().Context(), code)
	if errors.Is(err, ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "publication not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "publication lookup failed")
	}
	if consultant.Role != auth.RoleAdmin && rec.ConsultantID != consultant.FCCode {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not your publication")
	}
	return rec, nil
}

func actorType(consultant *auth.Consultant) string {
	if consultant.Role == auth.RoleAdmin {
		return ActorAdmin
	}
	return ActorFC
}

func actorID(consultant *auth.Consultant) string {
	if consultant.FCCode != "" {
		return consultant.FCCode
	}
	return consultant.Name
}
