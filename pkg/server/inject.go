package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/vango-dev/kiln/internal/dev"
)

// injectReload adds the reload client to HTML responses.
func injectReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		iw := &injectWriter{ResponseWriter: w}
		next.ServeHTTP(iw, r)
		iw.finish()
	})
}

type injectWriter struct {
	http.ResponseWriter
	status  int
	decided bool
	html    bool
	buf     bytes.Buffer
}

func (w *injectWriter) WriteHeader(code int) {
	if w.decided {
		return
	}
	w.decided = true
	w.status = code
	h := w.Header()
	w.html = strings.HasPrefix(h.Get("Content-Type"), "text/html") && h.Get("Content-Encoding") == ""
	if !w.html {
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *injectWriter) Write(p []byte) (int, error) {
	if !w.decided {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.html {
		return w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *injectWriter) finish() {
	if !w.html {
		return
	}
	body := injectScript(w.buf.Bytes())
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.status)
	w.ResponseWriter.Write(body)
}

// injectScript places the reload script tag before </body>, or appends it.
func injectScript(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	tag := []byte(dev.ScriptTag)
	i := bytes.LastIndex(bytes.ToLower(body), []byte("</body>"))
	if i < 0 {
		return append(body, tag...)
	}
	out := make([]byte, 0, len(body)+len(tag))
	out = append(out, body[:i]...)
	out = append(out, tag...)
	return append(out, body[i:]...)
}
