package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid kiln.json",
		DocURL:   "https://kiln.dev/docs/errors/E120",
	},

	// ============================================
	// CLI Errors (E140-E169)
	// ============================================

	"E141": {
		Category: CategoryCLI,
		Message:  "Project not found",
		DocURL:   "https://kiln.dev/docs/errors/E141",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Build failed",
		DocURL:   "https://kiln.dev/docs/errors/E142",
	},
	"E150": {
		Category: CategoryCLI,
		Message:  "Bundle publish failed",
		DocURL:   "https://kiln.dev/docs/errors/E150",
	},
	"E160": {
		Category: CategoryCLI,
		Message:  "Project scaffold failed",
		DocURL:   "https://kiln.dev/docs/errors/E160",
	},

	// ============================================
	// Bundle Errors (E200-E219)
	// ============================================

	"E201": {
		Category: CategoryBundle,
		Message:  "Module specifier could not be resolved",
		DocURL:   "https://kiln.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryBundle,
		Message:  "Dependency graph exceeds maximum depth",
		DocURL:   "https://kiln.dev/docs/errors/E202",
	},
	"E203": {
		Category: CategoryBundle,
		Message:  "Module file could not be read",
		DocURL:   "https://kiln.dev/docs/errors/E203",
	},
	"E204": {
		Category: CategoryBundle,
		Message:  "Bundle build timed out",
		DocURL:   "https://kiln.dev/docs/errors/E204",
	},
	"E205": {
		Category: CategoryHTTP,
		Message:  "Bad bundle request",
		DocURL:   "https://kiln.dev/docs/errors/E205",
	},
	"E206": {
		Category: CategoryRouting,
		Message:  "Route has no handler",
		DocURL:   "https://kiln.dev/docs/errors/E206",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered error codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}
