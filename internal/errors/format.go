package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiCyan  = "\033[36m"
	ansiGray  = "\033[90m"
	ansiBold  = "\033[1m"
)

// colorEnabled is off when NO_COLOR is set.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// DisableColors disables ANSI color output.
func DisableColors() { colorEnabled = false }

// EnableColors enables ANSI color output.
func EnableColors() { colorEnabled = true }

func paint(style, text string) string {
	if !colorEnabled {
		return text
	}
	return style + text + ansiReset
}

// chain returns e followed by every KilnError it wraps, outermost first,
// and the first uncoded cause below the last of them.
func (e *KilnError) chain() ([]*KilnError, error) {
	links := []*KilnError{e}
	for cur := e.Wrapped; cur != nil; {
		var ke *KilnError
		if !stderrors.As(cur, &ke) {
			return links, cur
		}
		links = append(links, ke)
		cur = ke.Wrapped
	}
	return links, nil
}

func (e *KilnError) heading() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Format renders the error and each coded cause beneath it for the
// terminal. The hint and documentation link come from the innermost
// error that has one.
//
//	ERROR E142: Build failed
//	  entry main.js
//	  caused by E201: Module specifier could not be resolved
//	    import   ./missing
//	    in       main.js
//
//	  Hint: Check the import path, bundle.extensions and bundle.ignore
//	  Learn more: https://kiln.dev/docs/errors/E201
func (e *KilnError) Format() string {
	links, root := e.chain()

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(paint(ansiRed+ansiBold, "ERROR "+e.heading()))
	b.WriteString("\n")

	var hint, doc string
	indent := "  "
	for i, ke := range links {
		if i > 0 {
			fmt.Fprintf(&b, "%s%s %s\n", indent, paint(ansiGray, "caused by"), ke.heading())
			indent += "  "
		}
		if ke.Specifier != "" {
			fmt.Fprintf(&b, "%s%-9s%s\n", indent, "import", ke.Specifier)
		}
		if ke.Module != "" {
			fmt.Fprintf(&b, "%s%-9s%s\n", indent, "in", ke.Module)
		}
		for _, line := range wrapText(ke.Detail, 72-len(indent)) {
			b.WriteString(indent + line + "\n")
		}
		if ke.Suggestion != "" {
			hint = ke.Suggestion
		}
		if ke.DocURL != "" {
			doc = ke.DocURL
		}
	}
	if root != nil {
		fmt.Fprintf(&b, "%s%s %s\n", indent, paint(ansiGray, "caused by"), root.Error())
	}

	if hint != "" || doc != "" {
		b.WriteString("\n")
	}
	if hint != "" {
		b.WriteString("  " + paint(ansiCyan, "Hint: ") + hint + "\n")
	}
	if doc != "" {
		b.WriteString("  " + paint(ansiGray, "Learn more: ") + doc + "\n")
	}
	return b.String()
}

// FormatCompact returns a single line: the HTTP status the error maps
// to, then each coded link of the chain joined by " <- ".
//
//	[500] E142: Build failed <- E201: Module specifier could not be resolved (import "./x" in main.js)
func (e *KilnError) FormatCompact() string {
	links, _ := e.chain()
	parts := make([]string, len(links))
	for i, ke := range links {
		parts[i] = ke.heading()
		if loc := ke.location(); loc != "" {
			parts[i] += " (" + loc + ")"
		}
	}
	return fmt.Sprintf("[%d] %s", HTTPStatus(e), strings.Join(parts, " <- "))
}

type jsonError struct {
	Code       string     `json:"code,omitempty"`
	Category   Category   `json:"category,omitempty"`
	Message    string     `json:"message"`
	Status     int        `json:"status,omitempty"`
	Module     string     `json:"module,omitempty"`
	Specifier  string     `json:"specifier,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Suggestion string     `json:"suggestion,omitempty"`
	DocURL     string     `json:"docUrl,omitempty"`
	Cause      *jsonError `json:"cause,omitempty"`
}

// FormatJSON returns the error chain as nested JSON objects. Only the
// outermost object carries the HTTP status.
func (e *KilnError) FormatJSON() string {
	links, root := e.chain()

	var tail *jsonError
	if root != nil {
		tail = &jsonError{Message: root.Error()}
	}
	for i := len(links) - 1; i >= 0; i-- {
		ke := links[i]
		tail = &jsonError{
			Code:       ke.Code,
			Category:   ke.Category,
			Message:    ke.Message,
			Module:     ke.Module,
			Specifier:  ke.Specifier,
			Detail:     ke.Detail,
			Suggestion: ke.Suggestion,
			DocURL:     ke.DocURL,
			Cause:      tail,
		}
	}
	tail.Status = HTTPStatus(e)

	out, err := json.Marshal(tail)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(out)
}

// wrapText splits text into lines of at most width bytes, breaking on
// spaces. A single longer word gets a line of its own.
func wrapText(text string, width int) []string {
	var lines []string
	var line string
	for _, word := range strings.Fields(text) {
		if line != "" && len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = ""
		}
		if line != "" {
			line += " "
		}
		line += word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// Print writes err to w in the given style: "compact", "json" or, for any
// other value, the multi-line terminal format.
func Print(w io.Writer, err error, style string) {
	var ke *KilnError
	if !stderrors.As(err, &ke) {
		switch style {
		case "compact":
			fmt.Fprintf(w, "[%d] %s\n", HTTPStatus(err), err)
		case "json":
			out, _ := json.Marshal(jsonError{Message: err.Error(), Status: HTTPStatus(err)})
			fmt.Fprintf(w, "%s\n", out)
		default:
			fmt.Fprintf(w, "\n%s %s\n\n", paint(ansiRed+ansiBold, "ERROR:"), err)
		}
		return
	}

	switch style {
	case "compact":
		fmt.Fprintln(w, ke.FormatCompact())
	case "json":
		fmt.Fprintln(w, ke.FormatJSON())
	default:
		fmt.Fprint(w, ke.Format())
	}
}
