package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/temirov/subrepo/internal/execshell"
	"github.com/temirov/subrepo/internal/repos/filesystem"
	"github.com/temirov/subrepo/internal/repos/shared"
)

const (
	gitTerminalPromptEnvironmentNameConstant = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisableValueConstant    = "0"
	gitlinkModeConstant                      = "160000"
	gitlinkObjectTypeConstant                = "commit"
	headReferenceConstant                    = "HEAD"
	commitPeelSuffixConstant                 = "^{commit}"
	remoteHeadSuffixConstant                 = "/HEAD"
	recordSeparatorConstant                  = "\x00"
	lineSeparatorConstant                    = "\n"
	tabSeparatorConstant                     = "\t"
	spaceSeparatorConstant                   = " "
	cacheInfoTemplateConstant                = "%s,%s,%s"
	directoryPermissionsConstant             = 0o755
	ancestorNotFoundExitCodeConstant         = 1
	detachedHeadExitCodeConstant             = 1
	stageZeroConstant                        = "0"

	openRepositoryErrorTemplateConstant    = "failed to open repository at %s: %w"
	initRepositoryErrorTemplateConstant    = "failed to initialize repository at %s: %w"
	cloneRepositoryErrorTemplateConstant   = "failed to clone %s into %s: %w"
	stagePathErrorTemplateConstant         = "failed to stage %s: %w"
	stageGitlinkErrorTemplateConstant      = "failed to stage gitlink %s at %s: %w"
	unstagePathErrorTemplateConstant       = "failed to unstage %s: %w"
	commitErrorTemplateConstant            = "failed to commit in %s: %w"
	checkoutErrorTemplateConstant          = "failed to check out %s in %s: %w"
	resetErrorTemplateConstant             = "failed to reset %s to %s: %w"
	currentCommitErrorTemplateConstant     = "failed to resolve HEAD in %s: %w"
	currentBranchErrorTemplateConstant     = "failed to resolve current branch in %s: %w"
	fetchErrorTemplateConstant             = "failed to fetch %s in %s: %w"
	pullErrorTemplateConstant              = "failed to pull %s in %s: %w"
	statusErrorTemplateConstant            = "failed to read status of %s: %w"
	ancestryErrorTemplateConstant          = "failed to compare %s with %s in %s: %w"
	listGitlinksErrorTemplateConstant      = "failed to list gitlinks in %s: %w"
	trackedErrorTemplateConstant           = "failed to check whether %s is tracked: %w"
	indexEntryErrorTemplateConstant        = "failed to read index entry for %s: %w"
	restoreIndexEntryErrorTemplateConstant = "failed to restore index entry for %s: %w"
	objectExistsErrorTemplateConstant      = "failed to check object %s in %s: %w"
	getRemoteURLErrorTemplateConstant      = "failed to read %s url in %s: %w"
	setRemoteURLErrorTemplateConstant      = "failed to set %s url in %s: %w"
	unexpectedTopLevelMessageConstant      = "path belongs to the enclosing repository %s"
	malformedGitlinkRecordTemplateConstant = "malformed record %q"
)

// ErrGitExecutorNotConfigured indicates a missing executor.
var ErrGitExecutorNotConfigured = errors.New("git executor not configured")

// RepositoryManager implements shared.GitRepositoryManager on top of the git CLI.
type RepositoryManager struct {
	executor   shared.GitExecutor
	fileSystem shared.FileSystem
}

// NewRepositoryManager constructs a manager that runs git through the executor.
func NewRepositoryManager(executor shared.GitExecutor) (*RepositoryManager, error) {
	return NewRepositoryManagerWithFileSystem(executor, filesystem.OSFileSystem{})
}

// NewRepositoryManagerWithFileSystem constructs a manager with an explicit filesystem.
func NewRepositoryManagerWithFileSystem(executor shared.GitExecutor, fileSystem shared.FileSystem) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &RepositoryManager{executor: executor, fileSystem: fileSystem}, nil
}

// Open resolves the repository whose working tree root is exactly repositoryPath.
// A directory nested inside some other repository's working tree is not a repository of its own.
func (manager *RepositoryManager) Open(executionContext context.Context, repositoryPath string) (shared.RepositoryHandle, error) {
	absolutePath, absoluteError := manager.fileSystem.Abs(repositoryPath)
	if absoluteError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(openRepositoryErrorTemplateConstant, repositoryPath, absoluteError)
	}
	directoryInfo, statError := manager.fileSystem.Stat(absolutePath)
	if statError != nil {
		return shared.RepositoryHandle{}, shared.NotARepositoryError{Path: absolutePath, Cause: statError}
	}
	if !directoryInfo.IsDir() {
		return shared.RepositoryHandle{}, shared.NotARepositoryError{Path: absolutePath}
	}

	output, executionError := manager.runGit(executionContext, absolutePath, nil, "rev-parse", "--show-toplevel", "--absolute-git-dir")
	if executionError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(executionError, &commandFailure) {
			return shared.RepositoryHandle{}, shared.NotARepositoryError{Path: absolutePath, Cause: executionError}
		}
		return shared.RepositoryHandle{}, fmt.Errorf(openRepositoryErrorTemplateConstant, absolutePath, executionError)
	}

	outputLines := strings.Split(strings.TrimSpace(output), lineSeparatorConstant)
	if len(outputLines) < 2 {
		return shared.RepositoryHandle{}, shared.NotARepositoryError{Path: absolutePath}
	}
	topLevelPath := strings.TrimSpace(outputLines[0])
	if !samePath(topLevelPath, absolutePath) {
		return shared.RepositoryHandle{}, shared.NotARepositoryError{Path: absolutePath, Cause: fmt.Errorf(unexpectedTopLevelMessageConstant, topLevelPath)}
	}
	return shared.RepositoryHandle{WorkTreePath: absolutePath, GitDirectoryPath: strings.TrimSpace(outputLines[1])}, nil
}

// Init creates an empty repository at repositoryPath.
func (manager *RepositoryManager) Init(executionContext context.Context, repositoryPath string) (shared.RepositoryHandle, error) {
	absolutePath, absoluteError := manager.fileSystem.Abs(repositoryPath)
	if absoluteError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(initRepositoryErrorTemplateConstant, repositoryPath, absoluteError)
	}
	if mkdirError := manager.fileSystem.MkdirAll(absolutePath, directoryPermissionsConstant); mkdirError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(initRepositoryErrorTemplateConstant, absolutePath, mkdirError)
	}
	if _, executionError := manager.runGit(executionContext, absolutePath, nil, "init", "--quiet", absolutePath); executionError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(initRepositoryErrorTemplateConstant, absolutePath, executionError)
	}
	return manager.Open(executionContext, absolutePath)
}

// Clone clones remoteURL into destinationPath, which must not exist yet.
func (manager *RepositoryManager) Clone(executionContext context.Context, remoteURL string, destinationPath string, options shared.CloneOptions) (shared.RepositoryHandle, error) {
	absoluteDestination, absoluteError := manager.fileSystem.Abs(destinationPath)
	if absoluteError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(cloneRepositoryErrorTemplateConstant, remoteURL, destinationPath, absoluteError)
	}
	parentDirectory := filepath.Dir(absoluteDestination)
	if mkdirError := manager.fileSystem.MkdirAll(parentDirectory, directoryPermissionsConstant); mkdirError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(cloneRepositoryErrorTemplateConstant, remoteURL, absoluteDestination, mkdirError)
	}

	arguments := []string{"clone", "--quiet"}
	if branch := strings.TrimSpace(options.Branch); len(branch) > 0 {
		arguments = append(arguments, "--branch", branch)
	}
	arguments = append(arguments, "--", remoteURL, absoluteDestination)

	if _, executionError := manager.runGit(executionContext, parentDirectory, networkEnvironment(), arguments...); executionError != nil {
		return shared.RepositoryHandle{}, fmt.Errorf(cloneRepositoryErrorTemplateConstant, remoteURL, absoluteDestination, executionError)
	}
	return manager.Open(executionContext, absoluteDestination)
}

// StagePath adds the paths to the index.
func (manager *RepositoryManager) StagePath(executionContext context.Context, handle shared.RepositoryHandle, paths ...string) error {
	arguments := append([]string{"add", "--"}, paths...)
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, arguments...); executionError != nil {
		return fmt.Errorf(stagePathErrorTemplateConstant, strings.Join(paths, spaceSeparatorConstant), executionError)
	}
	return nil
}

// StageGitlink records path as a gitlink pinned at commit without touching the working tree.
func (manager *RepositoryManager) StageGitlink(executionContext context.Context, handle shared.RepositoryHandle, path string, commit string) error {
	cacheInfo := fmt.Sprintf(cacheInfoTemplateConstant, gitlinkModeConstant, commit, filepath.ToSlash(path))
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "update-index", "--add", "--cacheinfo", cacheInfo); executionError != nil {
		return fmt.Errorf(stageGitlinkErrorTemplateConstant, commit, path, executionError)
	}
	return nil
}

// UnstagePath removes path, and anything below it, from the index. Absent entries are ignored.
func (manager *RepositoryManager) UnstagePath(executionContext context.Context, handle shared.RepositoryHandle, path string) error {
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "rm", "--cached", "-r", "--ignore-unmatch", "--quiet", "--", filepath.ToSlash(path)); executionError != nil {
		return fmt.Errorf(unstagePathErrorTemplateConstant, path, executionError)
	}
	return nil
}

// Commit records the index and returns the new commit id.
func (manager *RepositoryManager) Commit(executionContext context.Context, handle shared.RepositoryHandle, message string) (string, error) {
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "commit", "--quiet", "-m", message); executionError != nil {
		return "", fmt.Errorf(commitErrorTemplateConstant, handle.WorkTreePath, executionError)
	}
	return manager.CurrentCommit(executionContext, handle)
}

// Checkout moves the working tree to revision.
func (manager *RepositoryManager) Checkout(executionContext context.Context, handle shared.RepositoryHandle, revision string) error {
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "checkout", "--quiet", revision); executionError != nil {
		return fmt.Errorf(checkoutErrorTemplateConstant, revision, handle.WorkTreePath, executionError)
	}
	return nil
}

// ResetKeep moves the current branch and working tree to revision, keeping local modifications
// that do not conflict with the move.
func (manager *RepositoryManager) ResetKeep(executionContext context.Context, handle shared.RepositoryHandle, revision string) error {
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "reset", "--keep", "--quiet", revision); executionError != nil {
		return fmt.Errorf(resetErrorTemplateConstant, handle.WorkTreePath, revision, executionError)
	}
	return nil
}

// CurrentCommit returns the commit id of HEAD.
func (manager *RepositoryManager) CurrentCommit(executionContext context.Context, handle shared.RepositoryHandle) (string, error) {
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "rev-parse", "--verify", headReferenceConstant+commitPeelSuffixConstant)
	if executionError != nil {
		return "", fmt.Errorf(currentCommitErrorTemplateConstant, handle.WorkTreePath, executionError)
	}
	return strings.TrimSpace(output), nil
}

// CurrentBranch returns the checked out branch, or an empty string on a detached HEAD.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, handle shared.RepositoryHandle) (string, error) {
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "symbolic-ref", "--quiet", "--short", headReferenceConstant)
	if executionError != nil {
		if exitCode(executionError) == detachedHeadExitCodeConstant {
			return "", nil
		}
		return "", fmt.Errorf(currentBranchErrorTemplateConstant, handle.WorkTreePath, executionError)
	}
	return strings.TrimSpace(output), nil
}

// Fetch downloads objects and refs from remoteName.
func (manager *RepositoryManager) Fetch(executionContext context.Context, handle shared.RepositoryHandle, remoteName string) error {
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, networkEnvironment(), "fetch", "--quiet", remoteName); executionError != nil {
		return fmt.Errorf(fetchErrorTemplateConstant, remoteName, handle.WorkTreePath, executionError)
	}
	return nil
}

// Pull fast-forwards HEAD to branch on remoteName and returns the resulting commit.
// An empty branch falls back to the remote's default branch, then to the configured upstream.
func (manager *RepositoryManager) Pull(executionContext context.Context, handle shared.RepositoryHandle, remoteName string, branch string) (string, error) {
	resolvedBranch := strings.TrimSpace(branch)
	if len(resolvedBranch) == 0 {
		resolvedBranch = manager.remoteDefaultBranch(executionContext, handle, remoteName)
	}

	arguments := []string{"pull", "--ff-only", "--quiet"}
	if len(resolvedBranch) > 0 {
		arguments = append(arguments, remoteName, resolvedBranch)
	}
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, networkEnvironment(), arguments...); executionError != nil {
		return "", fmt.Errorf(pullErrorTemplateConstant, remoteName, handle.WorkTreePath, executionError)
	}
	return manager.CurrentCommit(executionContext, handle)
}

// Status reports whether the working tree has staged, unstaged or untracked changes.
func (manager *RepositoryManager) Status(executionContext context.Context, handle shared.RepositoryHandle) (shared.WorktreeStatus, error) {
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "status", "--porcelain")
	if executionError != nil {
		return shared.WorktreeStatus{}, fmt.Errorf(statusErrorTemplateConstant, handle.WorkTreePath, executionError)
	}
	entries := make([]string, 0)
	for _, line := range strings.Split(output, lineSeparatorConstant) {
		if len(strings.TrimSpace(line)) > 0 {
			entries = append(entries, line)
		}
	}
	return shared.WorktreeStatus{Clean: len(entries) == 0, Entries: entries}, nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
// An ancestor commit missing from the object database is reported as not an ancestor.
func (manager *RepositoryManager) IsAncestor(executionContext context.Context, handle shared.RepositoryHandle, ancestor string, descendant string) (bool, error) {
	_, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "merge-base", "--is-ancestor", ancestor, descendant)
	if executionError == nil {
		return true, nil
	}
	if exitCode(executionError) == ancestorNotFoundExitCodeConstant {
		return false, nil
	}
	ancestorExists, existsError := manager.BlobExists(executionContext, handle, ancestor+commitPeelSuffixConstant)
	if existsError == nil && !ancestorExists {
		return false, nil
	}
	return false, fmt.Errorf(ancestryErrorTemplateConstant, ancestor, descendant, handle.WorkTreePath, executionError)
}

// ListGitlinks returns the gitlinks recorded in HEAD or staged in the index.
func (manager *RepositoryManager) ListGitlinks(executionContext context.Context, handle shared.RepositoryHandle, source shared.GitlinkSource) ([]shared.Gitlink, error) {
	if source == shared.GitlinkSourceCommitted {
		headExists, existsError := manager.BlobExists(executionContext, handle, headReferenceConstant+commitPeelSuffixConstant)
		if existsError != nil {
			return nil, fmt.Errorf(listGitlinksErrorTemplateConstant, handle.WorkTreePath, existsError)
		}
		if !headExists {
			return nil, nil
		}
		output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "ls-tree", "-r", "-z", headReferenceConstant)
		if executionError != nil {
			return nil, fmt.Errorf(listGitlinksErrorTemplateConstant, handle.WorkTreePath, executionError)
		}
		return parseTreeGitlinks(output)
	}

	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "ls-files", "--stage", "-z")
	if executionError != nil {
		return nil, fmt.Errorf(listGitlinksErrorTemplateConstant, handle.WorkTreePath, executionError)
	}
	return parseIndexGitlinks(output)
}

// IsTracked reports whether the index holds path or anything below it.
func (manager *RepositoryManager) IsTracked(executionContext context.Context, handle shared.RepositoryHandle, path string) (bool, error) {
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "ls-files", "-z", "--", filepath.ToSlash(path))
	if executionError != nil {
		return false, fmt.Errorf(trackedErrorTemplateConstant, path, executionError)
	}
	return len(strings.Trim(output, recordSeparatorConstant)) > 0, nil
}

// LookupIndexEntry returns the stage-zero index record for exactly path.
func (manager *RepositoryManager) LookupIndexEntry(executionContext context.Context, handle shared.RepositoryHandle, path string) (shared.IndexEntry, bool, error) {
	slashPath := filepath.ToSlash(path)
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "ls-files", "--stage", "-z", "--", slashPath)
	if executionError != nil {
		return shared.IndexEntry{}, false, fmt.Errorf(indexEntryErrorTemplateConstant, path, executionError)
	}
	entries, parseError := parseIndexEntries(output)
	if parseError != nil {
		return shared.IndexEntry{}, false, fmt.Errorf(indexEntryErrorTemplateConstant, path, parseError)
	}
	for _, entry := range entries {
		if entry.Path == slashPath {
			return entry, true, nil
		}
	}
	return shared.IndexEntry{}, false, nil
}

// RestoreIndexEntry puts the index record for path back to previous, or drops it when previous is nil.
func (manager *RepositoryManager) RestoreIndexEntry(executionContext context.Context, handle shared.RepositoryHandle, path string, previous *shared.IndexEntry) error {
	if previous == nil {
		return manager.UnstagePath(executionContext, handle, path)
	}
	cacheInfo := fmt.Sprintf(cacheInfoTemplateConstant, previous.Mode, previous.Object, filepath.ToSlash(path))
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "update-index", "--add", "--cacheinfo", cacheInfo); executionError != nil {
		return fmt.Errorf(restoreIndexEntryErrorTemplateConstant, path, executionError)
	}
	return nil
}

// BlobExists reports whether reference names an object in the repository, for example HEAD:.gitmodules.
func (manager *RepositoryManager) BlobExists(executionContext context.Context, handle shared.RepositoryHandle, reference string) (bool, error) {
	_, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "cat-file", "-e", reference)
	if executionError == nil {
		return true, nil
	}
	var commandFailure execshell.CommandFailedError
	if errors.As(executionError, &commandFailure) {
		return false, nil
	}
	return false, fmt.Errorf(objectExistsErrorTemplateConstant, reference, handle.WorkTreePath, executionError)
}

// GetRemoteURL returns the url of remoteName, or an empty string when the remote is not configured.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, handle shared.RepositoryHandle, remoteName string) (string, error) {
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "remote", "get-url", remoteName)
	if executionError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(executionError, &commandFailure) {
			return "", nil
		}
		return "", fmt.Errorf(getRemoteURLErrorTemplateConstant, remoteName, handle.WorkTreePath, executionError)
	}
	return strings.TrimSpace(output), nil
}

// SetRemoteURL points remoteName at remoteURL, creating the remote when needed.
func (manager *RepositoryManager) SetRemoteURL(executionContext context.Context, handle shared.RepositoryHandle, remoteName string, remoteURL string) error {
	currentURL, lookupError := manager.GetRemoteURL(executionContext, handle, remoteName)
	if lookupError != nil {
		return lookupError
	}
	arguments := []string{"remote", "set-url", remoteName, remoteURL}
	if len(currentURL) == 0 {
		arguments = []string{"remote", "add", remoteName, remoteURL}
	}
	if _, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, arguments...); executionError != nil {
		return fmt.Errorf(setRemoteURLErrorTemplateConstant, remoteName, handle.WorkTreePath, executionError)
	}
	return nil
}

func (manager *RepositoryManager) remoteDefaultBranch(executionContext context.Context, handle shared.RepositoryHandle, remoteName string) string {
	output, executionError := manager.runGit(executionContext, handle.WorkTreePath, nil, "rev-parse", "--abbrev-ref", remoteName+remoteHeadSuffixConstant)
	if executionError != nil {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(output), remoteName+pathSeparatorConstant)
}

func (manager *RepositoryManager) runGit(executionContext context.Context, workingDirectory string, environment map[string]string, arguments ...string) (string, error) {
	return executeGit(executionContext, manager.executor, workingDirectory, environment, arguments...)
}

func executeGit(executionContext context.Context, executor shared.GitExecutor, workingDirectory string, environment map[string]string, arguments ...string) (string, error) {
	executionResult, executionError := executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: environment,
	})
	if executionError != nil {
		return "", executionError
	}
	return executionResult.StandardOutput, nil
}

func networkEnvironment() map[string]string {
	return map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptDisableValueConstant}
}

func exitCode(executionError error) int {
	var commandFailure execshell.CommandFailedError
	if errors.As(executionError, &commandFailure) {
		return commandFailure.Result.ExitCode
	}
	return -1
}

// parseTreeGitlinks reads `git ls-tree -r -z` records: "<mode> <type> <object>\t<path>".
func parseTreeGitlinks(output string) ([]shared.Gitlink, error) {
	gitlinks := make([]shared.Gitlink, 0)
	for _, record := range strings.Split(output, recordSeparatorConstant) {
		if len(record) == 0 {
			continue
		}
		metadata, path, found := strings.Cut(record, tabSeparatorConstant)
		fields := strings.Fields(metadata)
		if !found || len(fields) != 3 {
			return nil, fmt.Errorf(malformedGitlinkRecordTemplateConstant, record)
		}
		if fields[1] != gitlinkObjectTypeConstant {
			continue
		}
		gitlinks = append(gitlinks, shared.Gitlink{Path: path, Commit: fields[2]})
	}
	return gitlinks, nil
}

// parseIndexGitlinks keeps the gitlink records of `git ls-files --stage -z` output.
func parseIndexGitlinks(output string) ([]shared.Gitlink, error) {
	entries, parseError := parseIndexEntries(output)
	if parseError != nil {
		return nil, parseError
	}
	gitlinks := make([]shared.Gitlink, 0)
	for _, entry := range entries {
		if entry.Mode == gitlinkModeConstant {
			gitlinks = append(gitlinks, shared.Gitlink{Path: entry.Path, Commit: entry.Object})
		}
	}
	return gitlinks, nil
}

// parseIndexEntries reads `git ls-files --stage -z` records: "<mode> <object> <stage>\t<path>".
// Conflict stages are skipped.
func parseIndexEntries(output string) ([]shared.IndexEntry, error) {
	entries := make([]shared.IndexEntry, 0)
	for _, record := range strings.Split(output, recordSeparatorConstant) {
		if len(record) == 0 {
			continue
		}
		metadata, path, found := strings.Cut(record, tabSeparatorConstant)
		fields := strings.Fields(metadata)
		if !found || len(fields) != 3 {
			return nil, fmt.Errorf(malformedGitlinkRecordTemplateConstant, record)
		}
		if fields[2] != stageZeroConstant {
			continue
		}
		entries = append(entries, shared.IndexEntry{Path: path, Mode: fields[0], Object: fields[1]})
	}
	return entries, nil
}

func samePath(firstPath string, secondPath string) bool {
	resolvedFirst, firstError := filepath.EvalSymlinks(firstPath)
	if firstError != nil {
		resolvedFirst = firstPath
	}
	resolvedSecond, secondError := filepath.EvalSymlinks(secondPath)
	if secondError != nil {
		resolvedSecond = secondPath
	}
	return filepath.Clean(resolvedFirst) == filepath.Clean(resolvedSecond)
}

var _ shared.GitRepositoryManager = (*RepositoryManager)(nil)
