package router

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string
	Description string
	Version     string
}

// OpenAPISpec represents an OpenAPI 3.0 specification.
type OpenAPISpec struct {
	OpenAPI string                 `json:"openapi"`
	Info    OpenAPISpecInfo        `json:"info"`
	Paths   map[string]OpenAPIPath `json:"paths"`
}

// OpenAPISpecInfo contains API info.
type OpenAPISpecInfo struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// OpenAPIPath represents path operations.
type OpenAPIPath map[string]*OpenAPIOperation

// OpenAPIOperation represents an HTTP operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary,omitempty"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId,omitempty"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter represents a request parameter.
type OpenAPIParameter struct {
	Name        string         `json:"name"`
	In          string         `json:"in"` // path, query
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Schema      *OpenAPISchema `json:"schema"`
}

// OpenAPIResponse represents a response.
type OpenAPIResponse struct {
	Description string `json:"description"`
}

// OpenAPISchema represents a JSON schema.
type OpenAPISchema struct {
	Type string `json:"type,omitempty"`
}

// OpenAPI documents the registered routes. Routes sharing a path and method
// are documented once, by the first registered (the one that matches).
func (r *Router) OpenAPI(info OpenAPIInfo) ([]byte, error) {
	return json.MarshalIndent(r.OpenAPISpec(info), "", "  ")
}

// OpenAPISpec builds the document returned by OpenAPI.
func (r *Router) OpenAPISpec(info OpenAPIInfo) *OpenAPISpec {
	if info.Title == "" {
		info.Title = "API"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}

	spec := &OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPISpecInfo{
			Title:       info.Title,
			Description: info.Description,
			Version:     info.Version,
		},
		Paths: make(map[string]OpenAPIPath),
	}

	for _, route := range r.Routes() {
		p := openAPIPath(route.Pattern)
		item, ok := spec.Paths[p]
		if !ok {
			item = make(OpenAPIPath)
			spec.Paths[p] = item
		}
		method := strings.ToLower(route.Method)
		if _, dup := item[method]; dup {
			continue
		}
		item[method] = routeOperation(route)
	}
	return spec
}

func routeOperation(route *Route) *OpenAPIOperation {
	meta := route.Metadata
	if meta == nil {
		meta = &Metadata{}
	}

	op := &OpenAPIOperation{
		Summary:     meta.Summary,
		Description: meta.Description,
		OperationID: operationID(route),
		Tags:        meta.Tags,
		Responses:   make(map[string]OpenAPIResponse),
	}

	documented := make(map[string]bool)
	for _, p := range meta.Params {
		in := p.In
		if in == "" {
			in = "path"
		}
		documented[in+":"+p.Name] = true
		op.Parameters = append(op.Parameters, OpenAPIParameter{
			Name:        p.Name,
			In:          in,
			Description: p.Description,
			Required:    p.Required || in == "path",
			Schema:      &OpenAPISchema{Type: "string"},
		})
	}
	// Path parameters are always listed, documented or not.
	for _, name := range PatternParams(route.Pattern) {
		if documented["path:"+name] {
			continue
		}
		op.Parameters = append(op.Parameters, OpenAPIParameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &OpenAPISchema{Type: "string"},
		})
	}

	for status, desc := range meta.Responses {
		op.Responses[strconv.Itoa(status)] = OpenAPIResponse{Description: desc}
	}
	if len(op.Responses) == 0 {
		op.Responses["200"] = OpenAPIResponse{Description: http.StatusText(http.StatusOK)}
	}
	return op
}

// openAPIPath converts "/users/:id" to "/users/{id}".
func openAPIPath(pattern string) string {
	segs := segments(pattern)
	for i, seg := range segs {
		if isParam(seg) {
			segs[i] = "{" + ParamName(seg) + "}"
		}
	}
	return strings.Join(segs, "/")
}

// operationID derives "getUsersById"-style identifiers from a route.
func operationID(route *Route) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(route.Method))
	for _, seg := range segments(route.Pattern) {
		if seg == "" {
			continue
		}
		if isParam(seg) {
			b.WriteString("By")
			seg = ParamName(seg)
		}
		for _, word := range strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' || r == '.' }) {
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	return b.String()
}
