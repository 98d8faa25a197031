// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and renders each git invocation as a readable
// message so that repository operations stay traceable and testable.
package execshell
