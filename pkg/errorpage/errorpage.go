// Package errorpage renders the HTML bodies used for error responses.
package errorpage

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
)

var page = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Status}} {{.Title}}</title>
</head>
<body style="font-family: system-ui; padding: 40px; background: #1a1a1a; color: #fff;">
<h1 style="color: #ff5555;">{{.Status}} {{.Title}}</h1>
{{if .Message}}<p>{{.Message}}</p>{{end}}
</body>
</html>
`))

// Render returns the error page for status. message is escaped.
func Render(status int, message string) []byte {
	title := http.StatusText(status)
	if title == "" {
		title = "Error"
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, struct {
		Status  int
		Title   string
		Message string
	}{status, title, message}); err != nil {
		return []byte(strconv.Itoa(status) + " " + title)
	}
	return buf.Bytes()
}

// Write sends an error page with status.
func Write(w http.ResponseWriter, status int, message string) {
	body := Render(status, message)
	h := w.Header()
	h.Del("ETag")
	h.Del("Content-Encoding")
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
