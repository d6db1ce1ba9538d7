package errorpage

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	html := string(Render(http.StatusBadRequest, "Missing entry"))
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("expected doctype")
	}
	for _, want := range []string{"400 Bad Request", "<p>Missing entry</p>"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRenderEscapes(t *testing.T) {
	html := string(Render(http.StatusInternalServerError, `<script>alert("x")</script>`))
	if strings.Contains(html, "<script>") {
		t.Error("message must be escaped")
	}
}

func TestRenderUnknownStatus(t *testing.T) {
	html := string(Render(599, ""))
	if !strings.Contains(html, "599 Error") {
		t.Errorf("unknown status page = %s", html)
	}
	if strings.Contains(html, "<p>") {
		t.Error("empty message should render no paragraph")
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("ETag", `"stale"`)
	Write(rec, http.StatusNotFound, "nope")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", h.Get("Content-Type"))
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing no-store/nosniff headers")
	}
	if h.Get("ETag") != "" {
		t.Error("error pages must not carry an ETag")
	}
	if !strings.Contains(rec.Body.String(), "nope") {
		t.Error("body should contain the message")
	}
}
