package bundle

import (
	"bytes"
	"strings"
)

// stripMode selects what the comment/whitespace pass removes.
type stripMode struct {
	collapse      bool // collapse whitespace runs
	stripComments bool
	keepLicense   bool // keep /*! ... */ when stripping
}

func modeFor(opts Options) stripMode {
	return stripMode{
		collapse:      opts.Minify,
		stripComments: opts.Minify || !opts.Comments,
		keepLicense:   opts.Comments,
	}
}

func (m stripMode) noop() bool {
	return !m.collapse && !m.stripComments
}

// keywords after which a slash starts a regular expression.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// minify applies mode to src. String, template and regex literal contents
// are copied verbatim.
func minify(src string, mode stripMode) string {
	if mode.noop() {
		return src
	}
	m := &minifier{src: src, mode: mode}
	m.out.Grow(len(src))
	m.run()
	return m.out.String()
}

type minifier struct {
	src  string
	i    int
	out  strings.Builder
	mode stripMode

	pending []byte // whitespace and stripped comments not yet written
	last    byte   // last byte written outside whitespace
	word    string // identifier or keyword ending at last
	value   bool   // last token was a value, so "/" divides
	braces  int
	resume  []int // brace depths at which template literals resume
}

func (m *minifier) peek(off int) byte {
	if m.i+off < len(m.src) {
		return m.src[m.i+off]
	}
	return 0
}

func (m *minifier) run() {
	for m.i < len(m.src) {
		c := m.src[m.i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			m.pending = append(m.pending, c)
			m.i++
		case c == '/' && m.peek(1) == '/':
			m.lineComment()
		case c == '/' && m.peek(1) == '*':
			m.blockComment()
		case c == '\'' || c == '"':
			end := skipQuoted(m.src, m.i)
			m.emit(m.src[m.i:end])
			m.i = end
			m.word, m.value = "", true
		case c == '`':
			m.emit("`")
			m.i++
			m.template()
		case c == '/' && !m.value:
			m.regex()
		case c == '{':
			m.braces++
			m.punct(c)
		case c == '}':
			if n := len(m.resume); n > 0 && m.resume[n-1] == m.braces {
				m.resume = m.resume[:n-1]
				m.braces--
				m.emit("}")
				m.i++
				m.template()
				continue
			}
			m.braces--
			m.punct(c)
		case isIdentPart(c):
			j := m.i
			for j < len(m.src) && isIdentPart(m.src[j]) {
				j++
			}
			w := m.src[m.i:j]
			m.emit(w)
			m.i = j
			m.word = w
			m.value = !regexKeywords[w]
		case c == ')' || c == ']':
			m.emit(string(c))
			m.i++
			m.word, m.value = "", true
		default:
			m.punct(c)
		}
	}
	if !m.mode.collapse {
		m.out.Write(m.pending)
	}
	m.pending = m.pending[:0]
}

func (m *minifier) punct(c byte) {
	m.emit(string(c))
	m.i++
	m.word, m.value = "", false
}

func (m *minifier) lineComment() {
	end := strings.IndexByte(m.src[m.i:], '\n')
	if end < 0 {
		end = len(m.src)
	} else {
		end += m.i
	}
	if !m.mode.stripComments {
		m.emit(m.src[m.i:end])
	}
	m.i = end
}

func (m *minifier) blockComment() {
	end := strings.Index(m.src[m.i+2:], "*/")
	if end < 0 {
		end = len(m.src)
	} else {
		end += m.i + 4
	}
	text := m.src[m.i:end]
	m.i = end

	if !m.mode.stripComments || (m.mode.keepLicense && strings.HasPrefix(text, "/*!")) {
		m.emit(text)
		return
	}
	// A removed comment still separates tokens.
	if strings.Contains(text, "\n") {
		m.pending = append(m.pending, '\n')
	} else {
		m.pending = append(m.pending, ' ')
	}
}

// template copies a template literal body up to the closing backtick or the
// next "${", which hands control back to run.
func (m *minifier) template() {
	start := m.i
	for m.i < len(m.src) {
		switch m.src[m.i] {
		case '\\':
			m.i += 2
			continue
		case '`':
			m.i++
			m.out.WriteString(m.src[start:m.i])
			m.last, m.word, m.value = '`', "", true
			return
		case '$':
			if m.peek(1) == '{' {
				m.i += 2
				m.out.WriteString(m.src[start:m.i])
				m.braces++
				m.resume = append(m.resume, m.braces)
				m.last, m.word, m.value = '{', "", false
				return
			}
		}
		m.i++
	}
	if m.i > len(m.src) {
		m.i = len(m.src)
	}
	m.out.WriteString(m.src[start:m.i])
}

// regex copies a regular expression literal, including flags. A slash with
// no closing slash on the same line is written as an operator.
func (m *minifier) regex() {
	inClass := false
	for j := m.i + 1; j < len(m.src); j++ {
		switch m.src[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			m.punct('/')
			return
		case '/':
			if inClass {
				continue
			}
			j++
			for j < len(m.src) && isIdentPart(m.src[j]) {
				j++
			}
			m.emit(m.src[m.i:j])
			m.i = j
			m.word, m.value = "", true
			return
		}
	}
	m.punct('/')
}

// emit flushes pending whitespace given the next token and writes s.
func (m *minifier) emit(s string) {
	if s == "" {
		return
	}
	m.flush(s[0])
	m.out.WriteString(s)
	m.last = s[len(s)-1]
}

func (m *minifier) flush(next byte) {
	if len(m.pending) == 0 {
		return
	}
	p := m.pending
	m.pending = m.pending[:0]

	if !m.mode.collapse {
		m.out.Write(p)
		return
	}
	if m.out.Len() == 0 {
		return
	}

	newline := bytes.IndexByte(p, '\n') >= 0
	switch {
	case needsSpace(m.last, next):
		if newline {
			m.out.WriteByte('\n')
		} else {
			m.out.WriteByte(' ')
		}
	case newline && !newlineRedundant(m.last, next):
		m.out.WriteByte('\n')
	}
}

// needsSpace reports whether dropping the whitespace between two tokens
// would merge them.
func needsSpace(last, next byte) bool {
	switch {
	case isIdentPart(last) && isIdentPart(next):
		return true
	case (last == '+' || last == '-') && (next == '+' || next == '-'):
		return true
	case last == '/' && (next == '/' || next == '*'):
		return true
	case last >= '0' && last <= '9' && next == '.':
		return true
	}
	return false
}

// newlineRedundant reports whether a line break between two tokens can be
// dropped without changing automatic semicolon insertion.
func newlineRedundant(last, next byte) bool {
	return strings.IndexByte("{([,;=:?&|<>*%!", last) >= 0 ||
		strings.IndexByte("})],;", next) >= 0
}
