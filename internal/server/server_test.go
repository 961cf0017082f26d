package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*echo.Echo, *Handler) {
	e := echo.New()
	h := &Handler{DataDir: "/tmp", MaxFileSize: 1 << 20}
	h.Register(e.Group("/api"))
	return e, h
}

func TestQueryRejectsEmptyBody(t *testing.T) {
	e, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryRejectsMalformedJSON(t *testing.T) {
	e, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	e, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader(""))
	req.Header.Set(echo.HeaderContentType, echo.MIMEMultipartForm+"; boundary=x")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
