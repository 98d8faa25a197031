// Package cli constructs the subrepo command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the nested reference manager.
package cli
