// Package ui renders what subrepo prints for people: the reference listing table, its porcelain
// variant, confirmation prompts and the one-line progress messages echoed for git invocations in console mode.
package ui
