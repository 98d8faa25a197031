package submodules

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"sort"

	"github.com/temirov/subrepo/internal/repos/shared"
	pathutils "github.com/temirov/subrepo/internal/utils/path"
)

const (
	openChildOperationConstant          = "open"
	currentCommitChildOperationConstant = "read HEAD"
	listGitlinksOperationConstant       = "list gitlinks"
	headCommitReferenceConstant         = "HEAD^{commit}"
)

// Walker enumerates the references of a parent in lexicographic path order.
// Every call returns a fresh sequence; children are opened only when their step is produced.
type Walker struct {
	repositoryManager shared.GitRepositoryManager
	registry          *Registry
}

// NewWalker constructs a Walker.
func NewWalker(repositoryManager shared.GitRepositoryManager, registry *Registry) (*Walker, error) {
	if repositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if registry == nil {
		return nil, ErrRegistryNotConfigured
	}
	return &Walker{repositoryManager: repositoryManager, registry: registry}, nil
}

// WalkCommitted yields the references recorded at HEAD: gitlinks of the HEAD tree joined with the
// metadata file as committed.
func (walker *Walker) WalkCommitted(executionContext context.Context, parent shared.RepositoryHandle) iter.Seq2[WalkStep, error] {
	return walker.walk(executionContext, parent, shared.GitlinkSourceCommitted, walker.registry.ListCommittedEntries)
}

// WalkIndex yields the references as staged right now: gitlinks of the index joined with the
// working metadata file.
func (walker *Walker) WalkIndex(executionContext context.Context, parent shared.RepositoryHandle) iter.Seq2[WalkStep, error] {
	return walker.walk(executionContext, parent, shared.GitlinkSourceIndex, walker.registry.ListEntries)
}

// FilterByPath narrows the sequence to the step at path and stops the upstream sequence once it is found
// or passed.
func FilterByPath(sequence iter.Seq2[WalkStep, error], path string) iter.Seq2[WalkStep, error] {
	targetPath, pathError := pathutils.NormalizeReferencePath(path)
	if pathError != nil {
		targetPath = path
	}
	return func(yield func(WalkStep, error) bool) {
		for step, stepError := range sequence {
			if stepError != nil {
				yield(step, stepError)
				return
			}
			if step.Entry.Path == targetPath {
				yield(step, nil)
				return
			}
			if step.Entry.Path > targetPath {
				return
			}
		}
	}
}

type entryLister func(context.Context, shared.RepositoryHandle) ([]ReferenceEntry, error)

func (walker *Walker) walk(executionContext context.Context, parent shared.RepositoryHandle, source shared.GitlinkSource, listEntries entryLister) iter.Seq2[WalkStep, error] {
	return func(yield func(WalkStep, error) bool) {
		entries, listError := walker.joinGitlinks(executionContext, parent, source, listEntries)
		if listError != nil {
			yield(WalkStep{}, listError)
			return
		}
		for _, entry := range entries {
			if contextError := executionContext.Err(); contextError != nil {
				yield(WalkStep{Entry: entry}, contextError)
				return
			}
			step, resolveError := walker.resolve(executionContext, parent, entry)
			if !yield(step, resolveError) {
				return
			}
		}
	}
}

// joinGitlinks merges registered entries with the gitlinks of source. A path present on only one side
// is still produced: a registered entry without a gitlink has no committed commit, and a gitlink
// without a metadata section is not initialized.
func (walker *Walker) joinGitlinks(executionContext context.Context, parent shared.RepositoryHandle, source shared.GitlinkSource, listEntries entryLister) ([]ReferenceEntry, error) {
	entries, listError := listEntries(executionContext, parent)
	if listError != nil {
		return nil, listError
	}
	gitlinks, gitlinkError := walker.repositoryManager.ListGitlinks(executionContext, parent, source)
	if gitlinkError != nil {
		return nil, ParentRepositoryError{Operation: listGitlinksOperationConstant, Cause: gitlinkError}
	}

	entriesByPath := make(map[string]ReferenceEntry, len(entries)+len(gitlinks))
	for _, entry := range entries {
		entriesByPath[entry.Path] = entry
	}
	for _, gitlink := range gitlinks {
		entry, registered := entriesByPath[gitlink.Path]
		if !registered {
			entry = ReferenceEntry{Name: gitlink.Path, Path: gitlink.Path}
		}
		entry.CommittedCommit = gitlink.Commit
		entriesByPath[gitlink.Path] = entry
	}

	joined := make([]ReferenceEntry, 0, len(entriesByPath))
	for _, entry := range entriesByPath {
		joined = append(joined, entry)
	}
	sort.Slice(joined, func(first int, second int) bool {
		return joined[first].Path < joined[second].Path
	})
	return joined, nil
}

func (walker *Walker) resolve(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry) (WalkStep, error) {
	childPath := filepath.Join(parent.WorkTreePath, filepath.FromSlash(entry.Path))
	childHandle, openError := walker.repositoryManager.Open(executionContext, childPath)
	if openError != nil {
		var notRepository shared.NotARepositoryError
		if errors.As(openError, &notRepository) {
			return WalkStep{Entry: entry, Status: DeriveStatus(entry, false, nil)}, nil
		}
		return WalkStep{Entry: entry}, ChildRepositoryError{Path: entry.Path, Operation: openChildOperationConstant, Cause: openError}
	}

	workingCommit, commitError := walker.repositoryManager.CurrentCommit(executionContext, childHandle)
	if commitError != nil {
		// An interrupted clone or a fresh init leaves a repository without HEAD; it counts as missing.
		hasHead, headError := walker.repositoryManager.BlobExists(executionContext, childHandle, headCommitReferenceConstant)
		if headError != nil || hasHead {
			return WalkStep{Entry: entry, Child: &childHandle}, ChildRepositoryError{Path: entry.Path, Operation: currentCommitChildOperationConstant, Cause: commitError}
		}
		return WalkStep{Entry: entry, Status: DeriveStatus(entry, true, nil), Child: &childHandle}, nil
	}
	entry.WorkingCommit = workingCommit

	status := DeriveStatus(entry, true, func() bool {
		isAncestor, ancestryError := walker.repositoryManager.IsAncestor(executionContext, childHandle, entry.CommittedCommit, workingCommit)
		return ancestryError == nil && isAncestor
	})
	return WalkStep{Entry: entry, Status: status, Child: &childHandle}, nil
}
