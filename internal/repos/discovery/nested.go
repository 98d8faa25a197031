package discovery

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const gitMetadataEntryNameConstant = ".git"

// NestedRepositoryDiscoverer locates git repositories below a parent working tree.
type NestedRepositoryDiscoverer struct{}

// NewNestedRepositoryDiscoverer constructs a discoverer backed by filepath.WalkDir.
func NewNestedRepositoryDiscoverer() *NestedRepositoryDiscoverer {
	return &NestedRepositoryDiscoverer{}
}

// DiscoverNestedRepositories walks rootPath and returns the slash separated relative paths of directories
// holding a .git directory or file. The root itself is never reported, discovered repositories are not
// descended into, and excludedPaths (relative to rootPath) are skipped with everything below them.
func (discoverer *NestedRepositoryDiscoverer) DiscoverNestedRepositories(rootPath string, excludedPaths []string) ([]string, error) {
	excluded := make(map[string]struct{}, len(excludedPaths))
	for _, excludedPath := range excludedPaths {
		trimmed := strings.Trim(filepath.ToSlash(excludedPath), "/")
		if len(trimmed) > 0 {
			excluded[trimmed] = struct{}{}
		}
	}

	repositories := []string{}
	walkError := filepath.WalkDir(rootPath, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if path == rootPath {
				return walkError
			}
			if directoryEntry != nil && directoryEntry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !directoryEntry.IsDir() || path == rootPath {
			return nil
		}
		if directoryEntry.Name() == gitMetadataEntryNameConstant {
			return fs.SkipDir
		}

		relativePath, relativeError := filepath.Rel(rootPath, path)
		if relativeError != nil {
			return relativeError
		}
		relativePath = filepath.ToSlash(relativePath)
		if _, skip := excluded[relativePath]; skip {
			return fs.SkipDir
		}

		if _, statError := os.Lstat(filepath.Join(path, gitMetadataEntryNameConstant)); statError != nil {
			if errors.Is(statError, fs.ErrNotExist) {
				return nil
			}
			return fs.SkipDir
		}
		repositories = append(repositories, relativePath)
		return fs.SkipDir
	})
	if walkError != nil {
		return nil, walkError
	}

	sort.Strings(repositories)
	return repositories, nil
}
