// Package errors provides structured, coded errors for the livemodel engine.
//
// Every contract violation the engine can raise has a registered code that
// maps to a category, a short message and a longer explanation:
//
//	err := errors.New("E104").
//	    WithDetail(`prop "total" has a getter but no setter`).
//	    WithSuggestion("Register a Set hook for the field or stop writing to it")
//
//	fmt.Println(err.FormatCompact())
//	// E104: Readonly property
//
// # Categories
//
//   - construction: invalid definitions, bad base references
//   - access: misuse of the model API (readonly writes, wrap outside injection)
//   - async: timeouts and failures of task loads
//   - loader: missing, oversized or undecodable objects
//   - config: configuration loading errors
//   - cli: command line errors
//
// Two errors created from the same code match with errors.Is, so exported
// sentinels built with New can be compared against wrapped, detailed copies.
package errors
