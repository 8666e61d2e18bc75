package publication

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/covercheck/covercheck/internal/platform/auth"
	"github.com/covercheck/covercheck/internal/platform/blobstore"
)

func multipartPublishRequest(t *testing.T, fields map[string]string, pdf []byte) (*http.Request, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if pdf != nil {
		fw, err := w.CreateFormFile("file", "pamphlet.pdf")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(pdf); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req, w.FormDataContentType()
}

func contextWithConsultant(e *echo.Echo, req *http.Request, consultant *auth.Consultant) (echo.Context, *httptest.ResponseRecorder) {
	if consultant != nil {
		req = req.WithContext(auth.WithConsultant(req.Context(), consultant))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func publishFields() map[string]string {
	return map[string]string{
		"customer_name":     "Lee",
		"customer_sex":      "F",
		"customer_age_band": "40-49",
		"year_start":        "2023",
		"year_end":          "2024",
		"sort_basis":        "total_cost",
	}
}

func fcConsultant() *auth.Consultant {
	return &auth.Consultant{Name: "Kim", Role: auth.RoleFC, FCCode: "FC-7"}
}

func TestHandler_Publish(t *testing.T) {
	repo := newMockRepo()
	h := NewHandler(newTestPublicationService(repo, blobstore.NewInMemoryBlobStore()))
	e := echo.New()

	req, _ := multipartPublishRequest(t, publishFields(), []byte("%PDF-1.7"))
	c, rec := contextWithConsultant(e, req, fcConsultant())

	if err := h.Publish(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var out PublicationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ComplianceCode == "" || out.ConsultantID != "FC-7" {
		t.Errorf("record = %+v", out)
	}
}

func TestHandler_Publish_MissingFile(t *testing.T) {
	h := NewHandler(newTestPublicationService(newMockRepo(), blobstore.NewInMemoryBlobStore()))
	e := echo.New()

	req, _ := multipartPublishRequest(t, publishFields(), nil)
	c, _ := contextWithConsultant(e, req, fcConsultant())

	err := h.Publish(c)
	if err == nil {
		t.Fatal("expected an error without a file part")
	}
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Publish_StorageFailure(t *testing.T) {
	h := NewHandler(newTestPublicationService(newMockRepo(), failingBlobStore{}))
	e := echo.New()

	req, _ := multipartPublishRequest(t, publishFields(), []byte("pdf"))
	c, _ := contextWithConsultant(e, req, fcConsultant())

	err := h.Publish(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusBadGateway {
		t.Errorf("storage failure should map to 502, got %v", err)
	}
}

// sizeCappedBlobStore rejects every Put the way a backend with a hard
// object-size limit would.
type sizeCappedBlobStore struct{}

func (sizeCappedBlobStore) Put(context.Context, string, []byte, string) error {
	return blobstore.ErrArtifactTooLarge
}

func (sizeCappedBlobStore) Get(context.Context, string) ([]byte, string, error) {
	return nil, "", blobstore.ErrBlobNotFound
}

func TestHandler_Publish_OversizedFile(t *testing.T) {
	h := NewHandler(newTestPublicationService(newMockRepo(), sizeCappedBlobStore{}))
	e := echo.New()

	req, _ := multipartPublishRequest(t, publishFields(), []byte("pdf"))
	c, _ := contextWithConsultant(e, req, fcConsultant())

	err := h.Publish(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized artifact should map to 413, got %v", err)
	}
}

func TestHandler_GetLogsViewEvent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())
	h := NewHandler(svc)
	e := echo.New()

	stored, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, rec := contextWithConsultant(e, req, fcConsultant())
	c.SetParamNames("code")
	c.SetParamValues(stored.ComplianceCode)

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(repo.events) != 1 || repo.events[0].EventType != EventView {
		t.Errorf("events = %+v, want one view event", repo.events)
	}
}

func TestHandler_GetAdminLogsAdminView(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())
	h := NewHandler(svc)
	e := echo.New()

	stored, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, _ := contextWithConsultant(e, req, &auth.Consultant{Name: "Admin", Role: auth.RoleAdmin})
	c.SetParamNames("code")
	c.SetParamValues(stored.ComplianceCode)

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.events) != 1 || repo.events[0].EventType != EventAdminView {
		t.Errorf("events = %+v, want one admin_view event", repo.events)
	}
}

func TestHandler_GetEnforcesOwnership(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())
	h := NewHandler(svc)
	e := echo.New()

	stored, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}

	other := &auth.Consultant{Name: "Park", Role: auth.RoleFC, FCCode: "FC-9"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, _ := contextWithConsultant(e, req, other)
	c.SetParamNames("code")
	c.SetParamValues(stored.ComplianceCode)

	errResp := h.Get(c)
	var he *echo.HTTPError
	if !asHTTPError(errResp, &he) || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another consultant's record, got %v", errResp)
	}
}

func TestHandler_DownloadLogsEvent(t *testing.T) {
	repo := newMockRepo()
	blobs := blobstore.NewInMemoryBlobStore()
	svc := newTestPublicationService(repo, blobs)
	h := NewHandler(svc)
	e := echo.New()

	stored, err := svc.Publish(context.Background(), sampleRequest(), []byte("%PDF-1.7 body"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, rec := contextWithConsultant(e, req, fcConsultant())
	c.SetParamNames("code")
	c.SetParamValues(stored.ComplianceCode)

	if err := h.Download(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(body, []byte("%PDF-1.7 body")) {
		t.Error("download body mismatch")
	}
	if len(repo.events) != 1 || repo.events[0].EventType != EventDownload {
		t.Errorf("events = %+v, want one download event", repo.events)
	}
}

func TestHandler_List(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())
	h := NewHandler(svc)
	e := echo.New()

	if _, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf")); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, rec := contextWithConsultant(e, req, fcConsultant())

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []*PublicationRecord `json:"data"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("total = %d, data = %d, want 1/1", resp.Total, len(resp.Data))
	}
}

func TestHandler_BulkDownload(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())
	h := NewHandler(svc)
	e := echo.New()

	first, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf two"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet,
		"/?codes="+first.ComplianceCode+","+second.ComplianceCode, nil)
	c, rec := contextWithConsultant(e, req, fcConsultant())

	if err := h.BulkDownload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive entries = %d, want 2", len(zr.File))
	}
	if zr.File[0].Name != first.ComplianceCode+".pdf" {
		t.Errorf("first entry = %s", zr.File[0].Name)
	}
	if len(repo.events) != 2 {
		t.Fatalf("events = %d, want 2", len(repo.events))
	}
	for _, ev := range repo.events {
		if ev.EventType != EventBulkDownload {
			t.Errorf("event type = %s, want %s", ev.EventType, EventBulkDownload)
		}
	}
}

func TestHandler_BulkDownload_NoCodes(t *testing.T) {
	h := NewHandler(newTestPublicationService(newMockRepo(), blobstore.NewInMemoryBlobStore()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?codes=", nil)
	c, _ := contextWithConsultant(e, req, fcConsultant())

	err := h.BulkDownload(c)
	var he *echo.HTTPError
	if !asHTTPError(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without codes, got %v", err)
	}
}

func TestHandler_BulkDownload_EnforcesOwnership(t *testing.T) {
	repo := newMockRepo()
	svc := newTestPublicationService(repo, blobstore.NewInMemoryBlobStore())
	h := NewHandler(svc)
	e := echo.New()

	stored, err := svc.Publish(context.Background(), sampleRequest(), []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}

	other := &auth.Consultant{Name: "Park", Role: auth.RoleFC, FCCode: "FC-9"}
	req := httptest.NewRequest(http.MethodGet, "/?codes="+stored.ComplianceCode, nil)
	c, _ := contextWithConsultant(e, req, other)

	errResp := h.BulkDownload(c)
	var he *echo.HTTPError
	if !asHTTPError(errResp, &he) || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another consultant's record, got %v", errResp)
	}
	if len(repo.events) != 0 {
		t.Errorf("no events expected on refusal, got %+v", repo.events)
	}
}

func asHTTPError(err error, target **echo.HTTPError) bool {
	he, ok := err.(*echo.HTTPError)
	if ok {
		*target = he
	}
	return ok
}
