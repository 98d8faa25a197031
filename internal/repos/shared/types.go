package shared

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/temirov/subrepo/internal/execshell"
)

const (
	// OriginRemoteNameConstant identifies the default upstream remote.
	OriginRemoteNameConstant        = "origin"
	localConfigFileNameConstant     = "config"
	lockDirectoryNameConstant       = "subrepo"
	notARepositoryErrorTemplate     = "%s is not a git repository"
	notARepositoryWithCauseTemplate = "%s is not a git repository: %v"
)

// RepositoryHandle identifies one opened repository.
type RepositoryHandle struct {
	WorkTreePath     string
	GitDirectoryPath string
}

// LocalConfigPath returns the path of the repository's untracked configuration file.
func (handle RepositoryHandle) LocalConfigPath() string {
	return filepath.Join(handle.GitDirectoryPath, localConfigFileNameConstant)
}

// LockDirectoryPath returns the directory holding advisory lock files for this repository.
// It lives inside the git directory so lock files never appear in the working tree.
func (handle RepositoryHandle) LockDirectoryPath() string {
	return filepath.Join(handle.GitDirectoryPath, lockDirectoryNameConstant)
}

// NotARepositoryError reports a path that does not hold a git working tree.
type NotARepositoryError struct {
	Path  string
	Cause error
}

// Error describes the rejected path.
func (notRepository NotARepositoryError) Error() string {
	if notRepository.Cause == nil {
		return fmt.Sprintf(notARepositoryErrorTemplate, notRepository.Path)
	}
	return fmt.Sprintf(notARepositoryWithCauseTemplate, notRepository.Path, notRepository.Cause)
}

// Unwrap exposes the underlying failure.
func (notRepository NotARepositoryError) Unwrap() error {
	return notRepository.Cause
}

// WorktreeStatus summarizes `git status` for a repository.
type WorktreeStatus struct {
	Clean   bool
	Entries []string
}

// Gitlink is a tree or index entry that pins a nested repository at a commit.
type Gitlink struct {
	Path   string
	Commit string
}

// IndexEntry is one stage-zero record of the index.
type IndexEntry struct {
	Path   string
	Mode   string
	Object string
}

// GitlinkSource selects whether gitlinks are read from HEAD or from the index.
type GitlinkSource int

// Supported gitlink sources.
const (
	GitlinkSourceCommitted GitlinkSource = iota
	GitlinkSourceIndex
)

// CloneOptions tunes a clone.
type CloneOptions struct {
	Branch string
}

// FileSystem exposes filesystem operations required by repository services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Lstat(path string) (fs.FileInfo, error)
	Rename(oldPath string, newPath string) error
	Abs(path string) (string, error)
	MkdirAll(path string, permissions fs.FileMode) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
	Remove(path string) error
	RemoveAll(path string) error
}

// GitExecutor exposes the subset of shell execution used by repository services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryDiscoverer finds repositories nested below a working tree.
type RepositoryDiscoverer interface {
	DiscoverNestedRepositories(rootPath string, excludedPaths []string) ([]string, error)
}

// GitRepositoryManager exposes repository-level git operations.
type GitRepositoryManager interface {
	Open(executionContext context.Context, repositoryPath string) (RepositoryHandle, error)
	Init(executionContext context.Context, repositoryPath string) (RepositoryHandle, error)
	Clone(executionContext context.Context, remoteURL string, destinationPath string, options CloneOptions) (RepositoryHandle, error)
	StagePath(executionContext context.Context, handle RepositoryHandle, paths ...string) error
	StageGitlink(executionContext context.Context, handle RepositoryHandle, path string, commit string) error
	UnstagePath(executionContext context.Context, handle RepositoryHandle, path string) error
	Commit(executionContext context.Context, handle RepositoryHandle, message string) (string, error)
	Checkout(executionContext context.Context, handle RepositoryHandle, revision string) error
	ResetKeep(executionContext context.Context, handle RepositoryHandle, revision string) error
	CurrentCommit(executionContext context.Context, handle RepositoryHandle) (string, error)
	CurrentBranch(executionContext context.Context, handle RepositoryHandle) (string, error)
	Fetch(executionContext context.Context, handle RepositoryHandle, remoteName string) error
	Pull(executionContext context.Context, handle RepositoryHandle, remoteName string, branch string) (string, error)
	Status(executionContext context.Context, handle RepositoryHandle) (WorktreeStatus, error)
	IsAncestor(executionContext context.Context, handle RepositoryHandle, ancestor string, descendant string) (bool, error)
	ListGitlinks(executionContext context.Context, handle RepositoryHandle, source GitlinkSource) ([]Gitlink, error)
	IsTracked(executionContext context.Context, handle RepositoryHandle, path string) (bool, error)
	LookupIndexEntry(executionContext context.Context, handle RepositoryHandle, path string) (IndexEntry, bool, error)
	RestoreIndexEntry(executionContext context.Context, handle RepositoryHandle, path string, previous *IndexEntry) error
	BlobExists(executionContext context.Context, handle RepositoryHandle, reference string) (bool, error)
	GetRemoteURL(executionContext context.Context, handle RepositoryHandle, remoteName string) (string, error)
	SetRemoteURL(executionContext context.Context, handle RepositoryHandle, remoteName string, remoteURL string) error
}

// ConfigLocation names one git-config formatted surface.
// Exactly one of FilePath or BlobReference is set; blob locations are read-only.
type ConfigLocation struct {
	FilePath         string
	BlobReference    string
	WorkingDirectory string
	LockPath         string
}

// ReadOnly reports whether the location refers to a committed blob.
func (location ConfigLocation) ReadOnly() bool {
	return len(location.BlobReference) > 0
}

// ConfigSection is one `[section "subsection"]` block with its lowercase variable names.
type ConfigSection struct {
	Section    string
	Subsection string
	Values     map[string]string
}

// ConfigSnapshot holds the raw bytes of a surface so it can be restored exactly.
type ConfigSnapshot struct {
	Exists      bool
	Content     []byte
	Permissions fs.FileMode
}

// GitConfigStore reads and atomically rewrites git-config formatted files.
type GitConfigStore interface {
	ReadSections(executionContext context.Context, location ConfigLocation, section string) ([]ConfigSection, error)
	WriteSection(executionContext context.Context, location ConfigLocation, section ConfigSection) error
	UnsetSection(executionContext context.Context, location ConfigLocation, section string, subsection string) (bool, error)
	Snapshot(executionContext context.Context, location ConfigLocation) (ConfigSnapshot, error)
	Restore(executionContext context.Context, location ConfigLocation, snapshot ConfigSnapshot) error
	RemoveFile(executionContext context.Context, location ConfigLocation) error
}
