package pathutils

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	parentDirectoryComponentConstant  = ".."
	currentDirectoryComponentConstant = "."
	gitDirectoryComponentConstant     = ".git"
	forwardSlashConstant              = "/"
	backslashConstant                 = `\`
	referencePathErrorTemplate        = "%w: %q"
)

var (
	// ErrEmptyReferencePath indicates that no path was supplied.
	ErrEmptyReferencePath = errors.New("reference path is empty")
	// ErrAbsoluteReferencePath indicates a path that is not relative to the working tree root.
	ErrAbsoluteReferencePath = errors.New("reference path must be relative to the working tree root")
	// ErrEscapingReferencePath indicates a path that resolves outside the working tree.
	ErrEscapingReferencePath = errors.New("reference path escapes the working tree")
	// ErrReservedReferencePath indicates a path that names the working tree root or a git directory.
	ErrReservedReferencePath = errors.New("reference path is reserved")
)

// NormalizeReferencePath returns the cleaned, slash separated form of a working tree relative path.
func NormalizeReferencePath(candidatePath string) (string, error) {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return "", ErrEmptyReferencePath
	}
	slashPath := strings.ReplaceAll(trimmedPath, backslashConstant, forwardSlashConstant)
	if path.IsAbs(slashPath) || filepath.IsAbs(trimmedPath) || filepath.VolumeName(trimmedPath) != "" {
		return "", fmt.Errorf(referencePathErrorTemplate, ErrAbsoluteReferencePath, candidatePath)
	}

	cleanedPath := path.Clean(slashPath)
	if cleanedPath == currentDirectoryComponentConstant {
		return "", fmt.Errorf(referencePathErrorTemplate, ErrReservedReferencePath, candidatePath)
	}
	if cleanedPath == parentDirectoryComponentConstant || strings.HasPrefix(cleanedPath, parentDirectoryComponentConstant+forwardSlashConstant) {
		return "", fmt.Errorf(referencePathErrorTemplate, ErrEscapingReferencePath, candidatePath)
	}
	for _, component := range strings.Split(cleanedPath, forwardSlashConstant) {
		if strings.EqualFold(component, gitDirectoryComponentConstant) {
			return "", fmt.Errorf(referencePathErrorTemplate, ErrReservedReferencePath, candidatePath)
		}
	}
	return cleanedPath, nil
}

// ResolveContainedPath joins a normalized reference path onto the working tree root and verifies,
// after resolving symbolic links in the existing portion of the path, that the result stays inside the root.
func ResolveContainedPath(rootPath string, referencePath string) (string, error) {
	normalizedPath, normalizationError := NormalizeReferencePath(referencePath)
	if normalizationError != nil {
		return "", normalizationError
	}

	resolvedRoot, rootError := filepath.EvalSymlinks(rootPath)
	if rootError != nil {
		return "", rootError
	}
	joinedPath := filepath.Join(rootPath, filepath.FromSlash(normalizedPath))

	existingAncestor, remainder := deepestExistingAncestor(joinedPath)
	resolvedAncestor, ancestorError := filepath.EvalSymlinks(existingAncestor)
	if ancestorError != nil {
		return "", ancestorError
	}
	if !IsWithin(resolvedRoot, filepath.Join(resolvedAncestor, remainder)) {
		return "", fmt.Errorf(referencePathErrorTemplate, ErrEscapingReferencePath, referencePath)
	}
	return joinedPath, nil
}

// IsWithin reports whether candidatePath equals rootPath or lies below it.
func IsWithin(rootPath string, candidatePath string) bool {
	relativePath, relativeError := filepath.Rel(filepath.Clean(rootPath), filepath.Clean(candidatePath))
	if relativeError != nil {
		return false
	}
	if relativePath == currentDirectoryComponentConstant {
		return true
	}
	return relativePath != parentDirectoryComponentConstant && !strings.HasPrefix(relativePath, parentDirectoryComponentConstant+string(os.PathSeparator))
}

func deepestExistingAncestor(candidatePath string) (string, string) {
	remainder := ""
	current := candidatePath
	for {
		if _, statError := os.Lstat(current); statError == nil {
			return current, remainder
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current, remainder
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}
