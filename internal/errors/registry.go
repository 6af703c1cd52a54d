package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Construction Errors (E001-E099)
	// ============================================

	"E001": {
		Category: CategoryConstruction,
		Message:  "Invalid model props",
		Detail:   "A model definition needs a non-nil props map or at least one method or hook.",
	},
	"E002": {
		Category: CategoryConstruction,
		Message:  "Invalid base method",
		Detail:   "The builder referenced a base method that does not exist.",
	},
	"E003": {
		Category: CategoryConstruction,
		Message:  "Cannot call base method inside props builder",
		Detail:   "Base methods can only be invoked once the composed model exists.",
	},
	"E004": {
		Category: CategoryConstruction,
		Message:  "Method is abstract",
		Detail:   "The method has not been implemented yet.",
	},
	"E005": {
		Category: CategoryConstruction,
		Message:  "Invalid hydrated data for family model",
	},

	// ============================================
	// Access Errors (E100-E199)
	// ============================================

	"E101": {
		Category: CategoryAccess,
		Message:  "Unknown property",
		Detail:   "The property is not an observable field of the model.",
	},
	"E102": {
		Category: CategoryAccess,
		Message:  "Wrap must be called inside injector function",
	},
	"E103": {
		Category: CategoryAccess,
		Message:  "Model is not ready",
		Detail:   "The model is still being constructed; it cannot be accessed from an injector.",
	},
	"E104": {
		Category: CategoryAccess,
		Message:  "Readonly property",
	},
	"E105": {
		Category: CategoryAccess,
		Message:  "Memo must be called inside model method",
	},
	"E106": {
		Category: CategoryAccess,
		Message:  "The family model does not support this method",
	},
	"E107": {
		Category: CategoryAccess,
		Message:  "Unknown method",
	},

	// ============================================
	// Async / Loader Errors (E200-E299)
	// ============================================

	"E211": {
		Category: CategoryAsync,
		Message:  "Load timed out",
	},
	"E212": {
		Category: CategoryAsync,
		Message:  "Loader failed",
	},
	"E220": {
		Category: CategoryLoader,
		Message:  "Object not found",
	},
	"E221": {
		Category: CategoryLoader,
		Message:  "Object too large",
	},
	"E222": {
		Category: CategoryLoader,
		Message:  "Cannot decode object",
	},
	"E223": {
		Category: CategoryLoader,
		Message:  "Invalid object key",
		Detail:   "Keys are relative, slash-separated paths without \"..\" elements.",
	},

	// ============================================
	// Config / CLI Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	"E301": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	"E310": {
		Category: CategoryCLI,
		Message:  "Unknown demo",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
