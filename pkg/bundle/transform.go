package bundle

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reExportFrom = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]*(\*(?:[ \t]*as[ \t]+[\w$]+)?|\{[^}]*\})\s*from\s*['"]([^'"\n]+)['"][ \t]*;?`)
	reExportList = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]*\{([^}]*)\}[ \t]*;?`)

	reExportDefaultDecl = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+((?:async[ \t]+)?function\b[ \t]*\*?[ \t]*([\w$]+)|class[ \t]+([\w$]+))`)
	reExportDefault     = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+`)
	reExportDecl        = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+((?:async[ \t]+)?function\b[ \t]*\*?[ \t]*([\w$]+)|class[ \t]+([\w$]+)|(?:const|let|var)[ \t]+)`)

	reImportFrom   = regexp.MustCompile(`(?m)^([ \t]*)import[ \t]+([^;'"]+?)\s*\bfrom\s*['"]([^'"\n]+)['"][ \t]*;?`)
	reImportBare   = regexp.MustCompile(`(?m)^([ \t]*)import\s*['"]([^'"\n]+)['"][ \t]*;?`)
	reImportCall   = regexp.MustCompile(`\bimport\s*\(\s*(['"][^'"\n]+['"])\s*\)`)
	reIdentifier   = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	reDefaultAlias = regexp.MustCompile(`^default\s+as\s+`)
)

type exportBinding struct {
	name string
	expr string
}

// transformer rewrites one module's ESM syntax into loader calls.
type transformer struct {
	exports []exportBinding
	temps   int
	esm     bool
}

// transformModule returns src with import/export statements rewritten for
// the loader. Sources without ESM syntax are returned unchanged.
func transformModule(src string) string {
	t := &transformer{}

	src = replaceAll(reExportFrom, src, t.exportFrom)
	src = replaceAll(reExportList, src, t.exportList)
	src = replaceAll(reExportDefaultDecl, src, t.exportDefaultDecl)
	src = replaceAll(reExportDefault, src, t.exportDefault)
	src = replaceAll(reExportDecl, src, t.exportDecl)
	src = replaceAll(reImportFrom, src, t.importFrom)
	src = replaceAll(reImportBare, src, t.importBare)
	src = reImportCall.ReplaceAllString(src, "__kilnImport(require, $1)")

	if !t.esm {
		return src
	}
	return t.header() + src
}

func (t *transformer) header() string {
	var b strings.Builder
	b.WriteString("Object.defineProperty(exports, \"__esModule\", { value: true });\n")
	if len(t.exports) == 0 {
		return b.String()
	}
	b.WriteString("__kilnExport(exports, {")
	for i, e := range t.exports {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s: function () { return %s; }", jsString(e.name), e.expr)
	}
	b.WriteString(" });\n")
	return b.String()
}

func (t *transformer) export(name, expr string) {
	t.exports = append(t.exports, exportBinding{name: name, expr: expr})
}

func (t *transformer) temp() string {
	name := fmt.Sprintf("__kiln_m%d", t.temps)
	t.temps++
	return name
}

func requireCall(spec string) string {
	return "require(" + jsString(spec) + ")"
}

// export * from "x"; export * as ns from "x"; export { a, b as c } from "x"
func (t *transformer) exportFrom(m []string, _ string) string {
	t.esm = true
	indent, clause, spec := m[1], strings.TrimSpace(m[2]), m[3]

	if clause == "*" {
		return indent + "__kilnStar(exports, " + requireCall(spec) + ");"
	}

	tmp := t.temp()
	if strings.HasPrefix(clause, "*") {
		ns := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(clause[1:]), "as"))
		t.export(ns, tmp)
		return indent + "const " + tmp + " = " + requireCall(spec) + ";"
	}

	for _, item := range listItems(clause) {
		local, exported := splitAlias(item)
		t.export(exported, tmp+"["+jsString(local)+"]")
	}
	return indent + "const " + tmp + " = " + requireCall(spec) + ";"
}

// export { a, b as c }
func (t *transformer) exportList(m []string, _ string) string {
	t.esm = true
	for _, item := range listItems("{" + m[2] + "}") {
		local, exported := splitAlias(item)
		t.export(exported, local)
	}
	return m[1]
}

// export default function f() {} / export default class C {}
func (t *transformer) exportDefaultDecl(m []string, _ string) string {
	t.esm = true
	name := m[3]
	if name == "" {
		name = m[4]
	}
	if name == "extends" {
		// anonymous class expression
		return m[1] + "exports[\"default\"] = " + m[2]
	}
	t.export("default", name)
	return m[1] + m[2]
}

// export default <expression>
func (t *transformer) exportDefault(m []string, _ string) string {
	t.esm = true
	return m[1] + "exports[\"default\"] = "
}

// export function f / export class C / export const a = ...
func (t *transformer) exportDecl(m []string, rest string) string {
	t.esm = true
	switch {
	case m[3] != "":
		t.export(m[3], m[3])
	case m[4] != "":
		t.export(m[4], m[4])
	default:
		for _, name := range declaredNames(rest) {
			t.export(name, name)
		}
	}
	return m[1] + m[2]
}

// import x from "y"; import * as ns from "y"; import { a as b } from "y";
// import x, { a } from "y"
func (t *transformer) importFrom(m []string, _ string) string {
	indent, clause, spec := m[1], strings.TrimSpace(m[2]), m[3]
	if strings.HasPrefix(clause, "type ") || strings.HasPrefix(clause, "typeof ") {
		return m[0]
	}
	t.esm = true

	def, rest := "", clause
	if !strings.HasPrefix(clause, "{") && !strings.HasPrefix(clause, "*") {
		def, rest, _ = strings.Cut(clause, ",")
		def, rest = strings.TrimSpace(def), strings.TrimSpace(rest)
	}

	switch {
	case rest == "":
		return indent + "const " + def + " = __kilnDefault(" + requireCall(spec) + ");"
	case def == "":
		return indent + "const " + bindingPattern(rest) + " = " + requireCall(spec) + ";"
	}

	tmp := t.temp()
	return indent + "const " + tmp + " = " + requireCall(spec) + "; " +
		"const " + def + " = __kilnDefault(" + tmp + "); " +
		"const " + bindingPattern(rest) + " = " + tmp + ";"
}

// import "y"
func (t *transformer) importBare(m []string, _ string) string {
	t.esm = true
	return m[1] + requireCall(m[2]) + ";"
}

// bindingPattern converts an import clause tail ("* as ns" or "{ a as b }")
// into a declaration target.
func bindingPattern(clause string) string {
	if strings.HasPrefix(clause, "*") {
		return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(clause[1:]), "as"))
	}
	items := listItems(clause)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		imported, local := splitAlias(item)
		if imported == local {
			parts = append(parts, local)
		} else {
			parts = append(parts, jsString(imported)+": "+local)
		}
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// listItems splits "{ a, b as c, }" into its non-empty items.
func listItems(braced string) []string {
	inner := strings.TrimSpace(braced)
	inner = strings.TrimPrefix(inner, "{")
	inner = strings.TrimSuffix(inner, "}")

	var items []string
	for _, item := range strings.Split(inner, ",") {
		item = strings.Join(strings.Fields(item), " ")
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// splitAlias splits "a as b" into ("a", "b") and "a" into ("a", "a").
func splitAlias(item string) (string, string) {
	if reDefaultAlias.MatchString(item) {
		return "default", strings.TrimSpace(reDefaultAlias.ReplaceAllString(item, ""))
	}
	if from, to, ok := strings.Cut(item, " as "); ok {
		return strings.TrimSpace(from), strings.TrimSpace(to)
	}
	return item, item
}

// replaceAll is Regexp.ReplaceAllStringFunc with access to submatches and
// the text following each match.
func replaceAll(re *regexp.Regexp, src string, fn func(m []string, rest string) string) string {
	locs := re.FindAllStringSubmatchIndex(src, -1)
	if len(locs) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, loc := range locs {
		b.WriteString(src[last:loc[0]])
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = src[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(fn(m, src[loc[1]:]))
		last = loc[1]
	}
	b.WriteString(src[last:])
	return b.String()
}

// declaredNames returns the bindings introduced by the declarator list at
// the start of rest ("a = 1, { b, c: d } = obj"). Scanning stops at the end
// of the statement or line.
func declaredNames(rest string) []string {
	var names []string
	expectBinding := true
	depth := 0

	for i := 0; i < len(rest); {
		c := rest[i]
		switch {
		case expectBinding && depth == 0 && (c == '{' || c == '['):
			end := matchingBracket(rest, i)
			if end < 0 {
				return names
			}
			names = append(names, patternNames(rest[i+1:end])...)
			expectBinding = false
			i = end + 1
			continue
		case expectBinding && isIdentStart(c):
			j := i
			for j < len(rest) && isIdentPart(rest[j]) {
				j++
			}
			names = append(names, rest[i:j])
			expectBinding = false
			i = j
			continue
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(rest, i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return names
			}
		case c == ',' && depth == 0:
			expectBinding = true
		case (c == ';' || c == '\n') && depth == 0:
			return names
		}
		i++
	}
	return names
}

// patternNames returns the bindings of a destructuring pattern body.
func patternNames(body string) []string {
	var names []string
	for _, item := range splitTopLevel(body) {
		item = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), "..."))
		if item == "" {
			continue
		}
		if k := topLevelIndex(item, ':'); k >= 0 {
			item = strings.TrimSpace(item[k+1:])
		}
		if item != "" && (item[0] == '{' || item[0] == '[') {
			if end := matchingBracket(item, 0); end > 0 {
				names = append(names, patternNames(item[1:end])...)
			}
			continue
		}
		if k := topLevelIndex(item, '='); k >= 0 {
			item = strings.TrimSpace(item[:k])
		}
		if reIdentifier.MatchString(item) {
			names = append(names, item)
		}
	}
	return names
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(s, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func topLevelIndex(s string, target byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == target && depth == 0:
			return i
		}
	}
	return -1
}

// matchingBracket returns the index of the bracket closing s[open], or -1.
func matchingBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(s, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipQuoted returns the index just past the string literal starting at i.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			if q != '`' {
				return j
			}
		}
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
