package submodules

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/subrepo/internal/gitrepo"
	"github.com/temirov/subrepo/internal/repos/discovery"
	"github.com/temirov/subrepo/internal/repos/filesystem"
	"github.com/temirov/subrepo/internal/repos/shared"
	pathutils "github.com/temirov/subrepo/internal/utils/path"
)

const (
	gitlinkIndexModeConstant              = "160000"
	defaultManagerConcurrencyConstant     = 1
	invalidPathReasonConstant             = "invalid reference path"
	outsideWorkTreeReasonConstant         = "path is not inside the parent working tree"
	reservedPathReasonConstant            = "path is reserved for the metadata file"
	pathExistsReasonConstant              = "path already exists"
	pathTrackedReasonConstant             = "path is tracked by the parent repository"
	pathRegisteredReasonConstant          = "a reference is already registered at the path"
	urlRequiredMessageConstant            = "reference url must be provided"
	childNotCheckedOutMessageConstant     = "child repository is not checked out"
	notInitializedMessageConstant         = "reference is not initialized"
	checkoutHasChangesMessageConstant     = "checkout has uncommitted changes"
	inspectStatusChildOperationConstant   = "inspect status"
	pullChildOperationConstant            = "pull"
	resetChildOperationConstant           = "reset"
	fetchChildOperationConstant           = "fetch"
	checkoutChildOperationConstant        = "checkout"
	readRemoteChildOperationConstant      = "read remote url"
	setRemoteChildOperationConstant       = "set remote url"
	readRemoteParentOperationConstant     = "read remote url"
	readIndexParentOperationConstant      = "read index"
	stageGitlinkParentOperationConstant   = "stage gitlink"
	stageMetadataParentOperationConstant  = "stage metadata file"
	unstageGitlinkParentOperationConstant = "unstage gitlink"
	commitParentOperationConstant         = "commit"
	deleteCheckoutOperationConstant       = "delete checkout"
	inspectCheckoutOperationConstant      = "inspect checkout"
	discoverCheckoutsOperationConstant    = "discover nested checkouts"
	referenceAddedMessageConstant         = "reference added"
	referenceUpdatedMessageConstant       = "reference updated"
	referenceUnchangedMessageConstant     = "reference already at latest commit"
	referenceSkippedMessageConstant       = "reference skipped"
	referenceSyncedMessageConstant        = "reference url synchronized"
	referenceRemovedMessageConstant       = "reference removed"
	staleSectionRemovedMessageConstant    = "stale local configuration removed"
	referenceInitializedMessageConstant   = "reference initialized"
	referenceCheckedOutMessageConstant    = "reference checked out"
	referenceClonedMessageConstant        = "reference checkout restored"
	rollbackStartedMessageConstant        = "rolling back reference change"
	rollbackIncompleteMessageConstant     = "reference rollback incomplete"
	cleanupPendingMessageConstant         = "reference checkout could not be deleted"
	logFieldPathConstant                  = "path"
	logFieldURLConstant                   = "url"
	logFieldCommitConstant                = "commit"
	logFieldPreviousCommitConstant        = "previous_commit"
	logFieldReasonConstant                = "reason"
	logFieldChildRemoteConstant           = "child_remote_updated"
)

// ErrReferenceURLRequired indicates an add without a url.
var ErrReferenceURLRequired = errors.New(urlRequiredMessageConstant)

// ErrChildNotCheckedOut indicates an operation that needs the child checkout while it is absent.
var ErrChildNotCheckedOut = errors.New(childNotCheckedOutMessageConstant)

// ErrCheckoutHasChanges indicates a removal refused because the checkout holds uncommitted work.
var ErrCheckoutHasChanges = errors.New(checkoutHasChangesMessageConstant)

// ErrReferenceNotInitialized indicates an operation that needs a local configuration section while it is absent.
var ErrReferenceNotInitialized = errors.New(notInitializedMessageConstant)

// Dependencies enumerates external collaborators required by the Manager.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	ConfigStore       shared.GitConfigStore
	FileSystem        shared.FileSystem
	Discoverer        shared.RepositoryDiscoverer
	Logger            *zap.Logger
}

// Options tunes the Manager.
type Options struct {
	MetadataFileName string

	// FetchTimeout bounds every clone, fetch and pull. Zero disables the bound.
	FetchTimeout time.Duration

	// UpdateConcurrency bounds the number of children pulled at once by UpdateAll.
	UpdateConcurrency int

	// RequireCleanCheckouts makes Remove refuse a checkout with uncommitted changes.
	RequireCleanCheckouts bool
}

// AddOptions tunes Add.
type AddOptions struct {
	Branch string
}

// Manager sequences multi-step reference operations across the parent, the registry and the children.
// Callers serialize operations on one parent.
type Manager struct {
	repositoryManager shared.GitRepositoryManager
	configStore       shared.GitConfigStore
	fileSystem        shared.FileSystem
	discoverer        shared.RepositoryDiscoverer
	registry          *Registry
	walker            *Walker
	logger            *zap.Logger
	fetchTimeout      time.Duration
	updateConcurrency int
	requireClean      bool
}

// NewManager constructs a Manager from the provided dependencies.
func NewManager(dependencies Dependencies, options Options) (*Manager, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.ConfigStore == nil {
		return nil, ErrConfigStoreNotConfigured
	}
	registry, registryError := NewRegistry(dependencies.ConfigStore, options.MetadataFileName)
	if registryError != nil {
		return nil, registryError
	}
	walker, walkerError := NewWalker(dependencies.RepositoryManager, registry)
	if walkerError != nil {
		return nil, walkerError
	}

	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	discoverer := dependencies.Discoverer
	if discoverer == nil {
		discoverer = discovery.NewNestedRepositoryDiscoverer()
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := options.UpdateConcurrency
	if concurrency <= 0 {
		concurrency = defaultManagerConcurrencyConstant
	}

	return &Manager{
		repositoryManager: dependencies.RepositoryManager,
		configStore:       dependencies.ConfigStore,
		fileSystem:        fileSystem,
		discoverer:        discoverer,
		registry:          registry,
		walker:            walker,
		logger:            logger,
		fetchTimeout:      options.FetchTimeout,
		updateConcurrency: concurrency,
		requireClean:      options.RequireCleanCheckouts,
	}, nil
}

// Registry exposes the registry used by the manager.
func (manager *Manager) Registry() *Registry {
	return manager.registry
}

// Walker exposes the walker used by the manager.
func (manager *Manager) Walker() *Walker {
	return manager.walker
}

// addTransaction records what Add must put back when a step after validation fails.
type addTransaction struct {
	path               string
	metadataSnapshot   shared.ConfigSnapshot
	localSnapshot      shared.ConfigSnapshot
	metadataIndexEntry *shared.IndexEntry
	createdRoot        string
}

// Add clones url into path, registers the reference and stages the metadata file and the gitlink.
// Nothing is committed. Any failure after validation restores both surfaces, the index and the
// working tree to their state before the call.
func (manager *Manager) Add(executionContext context.Context, parent shared.RepositoryHandle, url string, path string, options AddOptions) (ReferenceEntry, error) {
	normalizedPath, absolutePath, pathError := manager.resolveTargetPath(parent, path)
	if pathError != nil {
		return ReferenceEntry{}, pathError
	}
	trimmedURL := strings.TrimSpace(url)
	if len(trimmedURL) == 0 {
		return ReferenceEntry{}, FetchError{Path: normalizedPath, Cause: ErrReferenceURLRequired}
	}

	fetchURL, resolveError := manager.resolveFetchURL(executionContext, parent, trimmedURL)
	if resolveError != nil {
		return ReferenceEntry{}, FetchError{URL: trimmedURL, Path: normalizedPath, Cause: resolveError}
	}
	entry := ReferenceEntry{
		Name:     normalizedPath,
		Path:     normalizedPath,
		URL:      trimmedURL,
		Branch:   strings.TrimSpace(options.Branch),
		LocalURL: fetchURL,
	}
	if validationError := manager.validateAddTarget(executionContext, parent, entry, absolutePath); validationError != nil {
		return ReferenceEntry{}, validationError
	}

	transaction, transactionError := manager.beginAdd(executionContext, parent, normalizedPath, absolutePath)
	if transactionError != nil {
		return ReferenceEntry{}, transactionError
	}

	fetchContext, cancelFetch := manager.withFetchTimeout(executionContext)
	childHandle, cloneError := manager.repositoryManager.Clone(fetchContext, fetchURL, absolutePath, shared.CloneOptions{Branch: entry.Branch})
	cancelFetch()
	if cloneError != nil {
		return ReferenceEntry{}, manager.rollbackAdd(executionContext, parent, transaction, FetchError{URL: fetchURL, Path: normalizedPath, Cause: cloneError})
	}

	childCommit, commitError := manager.repositoryManager.CurrentCommit(executionContext, childHandle)
	if commitError != nil {
		return ReferenceEntry{}, manager.rollbackAdd(executionContext, parent, transaction, ChildRepositoryError{Path: normalizedPath, Operation: currentCommitChildOperationConstant, Cause: commitError})
	}
	entry.Initialized = true
	entry.WorkingCommit = childCommit
	entry.CommittedCommit = childCommit

	if upsertError := manager.registry.UpsertEntry(executionContext, parent, entry); upsertError != nil {
		return ReferenceEntry{}, manager.rollbackAdd(executionContext, parent, transaction, upsertError)
	}
	if stageError := manager.stageMetadataFile(executionContext, parent); stageError != nil {
		return ReferenceEntry{}, manager.rollbackAdd(executionContext, parent, transaction, stageError)
	}
	if stageError := manager.repositoryManager.StageGitlink(executionContext, parent, normalizedPath, childCommit); stageError != nil {
		return ReferenceEntry{}, manager.rollbackAdd(executionContext, parent, transaction, ParentRepositoryError{Operation: stageGitlinkParentOperationConstant, Cause: stageError})
	}

	manager.logger.Info(referenceAddedMessageConstant,
		zap.String(logFieldPathConstant, normalizedPath),
		zap.String(logFieldURLConstant, trimmedURL),
		zap.String(logFieldCommitConstant, childCommit),
	)
	return entry, nil
}

// List reports every reference of the working view with its status. Nothing is mutated.
func (manager *Manager) List(executionContext context.Context, parent shared.RepositoryHandle) ([]ReferenceState, error) {
	return collectStates(manager.walker.WalkIndex(executionContext, parent))
}

// ListCommitted reports every reference recorded at HEAD with its status.
func (manager *Manager) ListCommitted(executionContext context.Context, parent shared.RepositoryHandle) ([]ReferenceState, error) {
	return collectStates(manager.walker.WalkCommitted(executionContext, parent))
}

// Update fast-forwards the child at path on its tracked branch and stages the new pin.
// On failure the child is moved back and the parent is left unchanged.
func (manager *Manager) Update(executionContext context.Context, parent shared.RepositoryHandle, path string) (ReferenceEntry, error) {
	updatedEntries, updateError := manager.UpdateAll(executionContext, parent, []string{path})
	if updateError != nil {
		return ReferenceEntry{}, updateError
	}
	return updatedEntries[0], nil
}

type updateTarget struct {
	step               WalkStep
	newCommit          string
	pulled             bool
	staged             bool
	previousIndexEntry *shared.IndexEntry
}

// UpdateAll updates the references at paths, or every checked out reference when paths is empty.
// Children are pulled concurrently; pins are staged one at a time. The batch is all-or-nothing.
func (manager *Manager) UpdateAll(executionContext context.Context, parent shared.RepositoryHandle, paths []string) ([]ReferenceEntry, error) {
	targets, resolveError := manager.resolveUpdateTargets(executionContext, parent, paths)
	if resolveError != nil {
		return nil, resolveError
	}

	if pullError := manager.pullTargets(executionContext, targets); pullError != nil {
		manager.rollbackUpdate(executionContext, parent, targets, pullError)
		return nil, pullError
	}

	updatedEntries := make([]ReferenceEntry, 0, len(targets))
	for index := range targets {
		target := &targets[index]
		entry := target.step.Entry
		entry.WorkingCommit = target.newCommit
		if target.newCommit == target.step.Entry.CommittedCommit {
			manager.logger.Info(referenceUnchangedMessageConstant,
				zap.String(logFieldPathConstant, entry.Path),
				zap.String(logFieldCommitConstant, target.newCommit),
			)
			updatedEntries = append(updatedEntries, entry)
			continue
		}

		previousIndexEntry, tracked, lookupError := manager.repositoryManager.LookupIndexEntry(executionContext, parent, entry.Path)
		if lookupError != nil {
			stagingError := ParentRepositoryError{Operation: readIndexParentOperationConstant, Cause: lookupError}
			manager.rollbackUpdate(executionContext, parent, targets, stagingError)
			return nil, stagingError
		}
		if tracked {
			target.previousIndexEntry = &previousIndexEntry
		}
		target.staged = true
		if stageError := manager.repositoryManager.StageGitlink(executionContext, parent, entry.Path, target.newCommit); stageError != nil {
			stagingError := ParentRepositoryError{Operation: stageGitlinkParentOperationConstant, Cause: stageError}
			manager.rollbackUpdate(executionContext, parent, targets, stagingError)
			return nil, stagingError
		}

		entry.CommittedCommit = target.newCommit
		manager.logger.Info(referenceUpdatedMessageConstant,
			zap.String(logFieldPathConstant, entry.Path),
			zap.String(logFieldPreviousCommitConstant, target.step.Entry.WorkingCommit),
			zap.String(logFieldCommitConstant, target.newCommit),
		)
		updatedEntries = append(updatedEntries, entry)
	}
	return updatedEntries, nil
}

// Sync resets the local configuration url of every reference to the url recorded in the metadata file,
// resolving relative urls against the parent's origin, and repoints the child's origin when the child is
// checked out. Only the url changes, so a deactivated reference stays deactivated. A reference whose local
// section was deleted gets it back. Working tree content is never touched.
func (manager *Manager) Sync(executionContext context.Context, parent shared.RepositoryHandle) ([]SyncResult, error) {
	entries, listError := manager.registry.ListEntries(executionContext, parent)
	if listError != nil {
		return nil, listError
	}

	results := make([]SyncResult, 0, len(entries))
	for _, entry := range entries {
		if len(entry.URL) == 0 {
			continue
		}
		resolvedURL, resolveError := manager.resolveFetchURL(executionContext, parent, entry.URL)
		if resolveError != nil {
			return results, FetchError{URL: entry.URL, Path: entry.Path, Cause: resolveError}
		}

		result := SyncResult{Path: entry.Path, PreviousURL: entry.LocalURL, URL: resolvedURL}
		changed, writeError := manager.registry.ResetLocalURL(executionContext, parent, entry, resolvedURL)
		if writeError != nil {
			return results, writeError
		}
		result.Changed = changed

		childRemoteUpdated, remoteError := manager.syncChildRemote(executionContext, parent, entry, resolvedURL)
		if remoteError != nil {
			return results, remoteError
		}
		result.ChildRemoteUpdated = childRemoteUpdated

		if result.Changed || result.ChildRemoteUpdated {
			manager.logger.Info(referenceSyncedMessageConstant,
				zap.String(logFieldPathConstant, entry.Path),
				zap.String(logFieldURLConstant, resolvedURL),
				zap.Bool(logFieldChildRemoteConstant, result.ChildRemoteUpdated),
			)
		}
		results = append(results, result)
	}
	return results, nil
}

// Remove tears the reference at path down in order: metadata section, local section, staged metadata
// file, staged gitlink, checkout. A failed step stops the sequence. When only the checkout deletion
// fails the surfaces stay removed and PartialRemovalError is returned with FilesystemCleanupPending set.
// A path that is neither registered nor staged still has its directory deleted when that directory is a
// repository of its own; any other unregistered path is left alone and reported as not removed.
// With RequireCleanCheckouts a checkout holding uncommitted changes stops the removal before anything changes.
func (manager *Manager) Remove(executionContext context.Context, parent shared.RepositoryHandle, path string) (RemovalResult, error) {
	normalizedPath, absolutePath, pathError := manager.resolveTargetPath(parent, path)
	if pathError != nil {
		return RemovalResult{Path: path}, pathError
	}
	result := RemovalResult{Path: normalizedPath}
	if manager.requireClean {
		if cleanError := manager.requireCleanCheckout(executionContext, normalizedPath, absolutePath); cleanError != nil {
			return result, cleanError
		}
	}

	indexEntry, tracked, lookupError := manager.repositoryManager.LookupIndexEntry(executionContext, parent, normalizedPath)
	if lookupError != nil {
		return result, ParentRepositoryError{Operation: readIndexParentOperationConstant, Cause: lookupError}
	}
	gitlinkTracked := tracked && indexEntry.Mode == gitlinkIndexModeConstant

	removedSurfaces, removeError := manager.registry.RemoveEntry(executionContext, parent, normalizedPath)
	if removeError != nil {
		return result, removeError
	}
	if removedSurfaces.Metadata || gitlinkTracked {
		if stageError := manager.stageMetadataFile(executionContext, parent); stageError != nil {
			return result, stageError
		}
	}
	if gitlinkTracked {
		if unstageError := manager.repositoryManager.UnstagePath(executionContext, parent, normalizedPath); unstageError != nil {
			return result, ParentRepositoryError{Operation: unstageGitlinkParentOperationConstant, Cause: unstageError}
		}
	}
	result.Removed = removedSurfaces.Any() || gitlinkTracked

	removable, inspectError := manager.checkoutRemovable(executionContext, absolutePath, result.Removed)
	if inspectError != nil {
		result.FilesystemCleanupPending = result.Removed
		return result, manager.partialRemoval(normalizedPath, FilesystemError{Path: absolutePath, Operation: inspectCheckoutOperationConstant, Cause: inspectError}, result.Removed)
	}
	if removable {
		if deleteError := manager.fileSystem.RemoveAll(absolutePath); deleteError != nil {
			result.FilesystemCleanupPending = true
			return result, manager.partialRemoval(normalizedPath, FilesystemError{Path: absolutePath, Operation: deleteCheckoutOperationConstant, Cause: deleteError}, true)
		}
		result.Removed = true
	}

	if result.Removed {
		manager.logger.Info(referenceRemovedMessageConstant, zap.String(logFieldPathConstant, normalizedPath))
	}
	return result, nil
}

// ListOrphans returns the nested checkouts below the parent working tree that neither the metadata file
// nor the index owns, in lexicographic order. Interrupted removals leave such checkouts behind.
func (manager *Manager) ListOrphans(executionContext context.Context, parent shared.RepositoryHandle) ([]string, error) {
	entries, listError := manager.registry.ListEntries(executionContext, parent)
	if listError != nil {
		return nil, listError
	}
	gitlinks, gitlinkError := manager.repositoryManager.ListGitlinks(executionContext, parent, shared.GitlinkSourceIndex)
	if gitlinkError != nil {
		return nil, ParentRepositoryError{Operation: readIndexParentOperationConstant, Cause: gitlinkError}
	}

	ownedPaths := make([]string, 0, len(entries)+len(gitlinks))
	for _, entry := range entries {
		ownedPaths = append(ownedPaths, entry.Path)
	}
	for _, gitlink := range gitlinks {
		ownedPaths = append(ownedPaths, gitlink.Path)
	}

	orphans, discoveryError := manager.discoverer.DiscoverNestedRepositories(parent.WorkTreePath, ownedPaths)
	if discoveryError != nil {
		return nil, FilesystemError{Path: parent.WorkTreePath, Operation: discoverCheckoutsOperationConstant, Cause: discoveryError}
	}
	return orphans, nil
}

// Prune deletes every checkout reported by ListOrphans through Remove, then drops the local configuration
// sections that no metadata section refers to. It stops at the first failure.
func (manager *Manager) Prune(executionContext context.Context, parent shared.RepositoryHandle) ([]RemovalResult, error) {
	orphans, orphanError := manager.ListOrphans(executionContext, parent)
	if orphanError != nil {
		return nil, orphanError
	}
	results := make([]RemovalResult, 0, len(orphans))
	for _, orphan := range orphans {
		result, removeError := manager.Remove(executionContext, parent, orphan)
		results = append(results, result)
		if removeError != nil {
			return results, removeError
		}
	}

	staleEntries, staleError := manager.registry.ListStaleEntries(executionContext, parent)
	if staleError != nil {
		return results, staleError
	}
	for _, staleEntry := range staleEntries {
		removed, removeError := manager.registry.RemoveLocalSection(executionContext, parent, staleEntry.Name)
		if removeError != nil {
			return results, removeError
		}
		results = append(results, RemovalResult{Path: staleEntry.Path, Removed: removed, LocalConfigurationOnly: true})
		if removed {
			manager.logger.Info(staleSectionRemovedMessageConstant, zap.String(logFieldPathConstant, staleEntry.Path))
		}
	}
	return results, nil
}

// Init copies the metadata url, resolved against the parent's origin, into the local configuration of
// every uninitialized reference at paths, or of all references when paths is empty.
func (manager *Manager) Init(executionContext context.Context, parent shared.RepositoryHandle, paths []string) ([]InitResult, error) {
	entries, listError := manager.registry.ListEntries(executionContext, parent)
	if listError != nil {
		return nil, listError
	}
	selectedEntries, selectionError := selectEntries(entries, paths)
	if selectionError != nil {
		return nil, selectionError
	}

	results := make([]InitResult, 0, len(selectedEntries))
	for _, entry := range selectedEntries {
		if entry.Initialized {
			results = append(results, InitResult{Path: entry.Path, LocalURL: entry.LocalURL})
			continue
		}
		resolvedURL, resolveError := manager.resolveFetchURL(executionContext, parent, entry.URL)
		if resolveError != nil {
			return results, FetchError{URL: entry.URL, Path: entry.Path, Cause: resolveError}
		}
		if writeError := manager.registry.SetLocalURL(executionContext, parent, entry, resolvedURL); writeError != nil {
			return results, writeError
		}
		manager.logger.Info(referenceInitializedMessageConstant,
			zap.String(logFieldPathConstant, entry.Path),
			zap.String(logFieldURLConstant, resolvedURL),
		)
		results = append(results, InitResult{Path: entry.Path, LocalURL: resolvedURL, Changed: true})
	}
	return results, nil
}

// Checkout moves every initialized child at paths, or all of them when paths is empty, to the commit
// staged in the parent. Absent checkouts are cloned from the local url first. The pins are not changed.
func (manager *Manager) Checkout(executionContext context.Context, parent shared.RepositoryHandle, paths []string) ([]CheckoutResult, error) {
	steps, collectError := collectSteps(manager.walker.WalkIndex(executionContext, parent))
	if collectError != nil {
		return nil, collectError
	}
	selectedSteps, explicit, selectionError := selectSteps(steps, paths)
	if selectionError != nil {
		return nil, selectionError
	}

	results := make([]CheckoutResult, 0, len(selectedSteps))
	for _, step := range selectedSteps {
		entry := step.Entry
		if !entry.Initialized {
			if explicit {
				return results, ChildRepositoryError{Path: entry.Path, Operation: checkoutChildOperationConstant, Cause: ErrReferenceNotInitialized}
			}
			manager.logger.Info(referenceSkippedMessageConstant, zap.String(logFieldPathConstant, entry.Path), zap.String(logFieldReasonConstant, notInitializedMessageConstant))
			continue
		}
		if len(entry.CommittedCommit) == 0 {
			continue
		}

		childHandle := step.Child
		if childHandle == nil {
			restoredHandle, restoreError := manager.restoreCheckout(executionContext, parent, entry)
			if restoreError != nil {
				return results, restoreError
			}
			childHandle = &restoredHandle
			entry.WorkingCommit = ""
		}

		result := CheckoutResult{Path: entry.Path, PreviousCommit: entry.WorkingCommit, Commit: entry.CommittedCommit}
		if entry.WorkingCommit != entry.CommittedCommit {
			if checkoutError := manager.checkoutPin(executionContext, *childHandle, entry); checkoutError != nil {
				return results, checkoutError
			}
			manager.logger.Info(referenceCheckedOutMessageConstant,
				zap.String(logFieldPathConstant, entry.Path),
				zap.String(logFieldPreviousCommitConstant, entry.WorkingCommit),
				zap.String(logFieldCommitConstant, entry.CommittedCommit),
			)
		}
		results = append(results, result)
	}
	return results, nil
}

// Commit records the staged changes of the parent and returns the new commit id.
func (manager *Manager) Commit(executionContext context.Context, parent shared.RepositoryHandle, message string) (string, error) {
	commitID, commitError := manager.repositoryManager.Commit(executionContext, parent, message)
	if commitError != nil {
		return "", ParentRepositoryError{Operation: commitParentOperationConstant, Cause: commitError}
	}
	return commitID, nil
}

func (manager *Manager) resolveTargetPath(parent shared.RepositoryHandle, path string) (string, string, error) {
	normalizedPath, normalizationError := pathutils.NormalizeReferencePath(path)
	if normalizationError != nil {
		return "", "", PathConflictError{Path: path, Reason: invalidPathReasonConstant, Cause: normalizationError}
	}
	if strings.EqualFold(normalizedPath, filepath.ToSlash(manager.registry.MetadataFileName())) {
		return "", "", PathConflictError{Path: path, Reason: reservedPathReasonConstant}
	}
	absolutePath, containmentError := pathutils.ResolveContainedPath(parent.WorkTreePath, normalizedPath)
	if containmentError != nil {
		return "", "", PathConflictError{Path: path, Reason: outsideWorkTreeReasonConstant, Cause: containmentError}
	}
	return normalizedPath, absolutePath, nil
}

func (manager *Manager) validateAddTarget(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry, absolutePath string) error {
	existingEntry, registered, lookupError := manager.registry.LookupEntry(executionContext, parent, entry.Path)
	if lookupError != nil {
		return lookupError
	}
	if registered {
		if existingEntry.URL != entry.URL {
			return ConflictError{Path: entry.Path, Surface: metadataSurfaceConstant, ExistingURL: existingEntry.URL, RequestedURL: entry.URL}
		}
		return PathConflictError{Path: entry.Path, Reason: pathRegisteredReasonConstant}
	}
	if conflictError := manager.registry.checkConflict(executionContext, parent, entry); conflictError != nil {
		return conflictError
	}

	if _, statError := manager.fileSystem.Lstat(absolutePath); statError == nil {
		return PathConflictError{Path: entry.Path, Reason: pathExistsReasonConstant}
	} else if !errors.Is(statError, fs.ErrNotExist) {
		return FilesystemError{Path: absolutePath, Operation: inspectCheckoutOperationConstant, Cause: statError}
	}

	tracked, trackedError := manager.repositoryManager.IsTracked(executionContext, parent, entry.Path)
	if trackedError != nil {
		return ParentRepositoryError{Operation: readIndexParentOperationConstant, Cause: trackedError}
	}
	if tracked {
		return PathConflictError{Path: entry.Path, Reason: pathTrackedReasonConstant}
	}
	return nil
}

func (manager *Manager) beginAdd(executionContext context.Context, parent shared.RepositoryHandle, path string, absolutePath string) (addTransaction, error) {
	metadataLocation := manager.registry.MetadataLocation(parent)
	metadataSnapshot, metadataError := manager.configStore.Snapshot(executionContext, metadataLocation)
	if metadataError != nil {
		return addTransaction{}, surfaceError(metadataLocation, metadataSurfaceConstant, readSurfaceOperationConstant, metadataError)
	}
	localLocation := manager.registry.LocalConfigLocation(parent)
	localSnapshot, localError := manager.configStore.Snapshot(executionContext, localLocation)
	if localError != nil {
		return addTransaction{}, surfaceError(localLocation, localConfigSurfaceConstant, readSurfaceOperationConstant, localError)
	}

	transaction := addTransaction{
		path:             path,
		metadataSnapshot: metadataSnapshot,
		localSnapshot:    localSnapshot,
		createdRoot:      manager.firstMissingPath(parent.WorkTreePath, absolutePath),
	}
	metadataIndexEntry, metadataTracked, lookupError := manager.repositoryManager.LookupIndexEntry(executionContext, parent, manager.registry.MetadataFileName())
	if lookupError != nil {
		return addTransaction{}, ParentRepositoryError{Operation: readIndexParentOperationConstant, Cause: lookupError}
	}
	if metadataTracked {
		transaction.metadataIndexEntry = &metadataIndexEntry
	}
	return transaction, nil
}

// rollbackAdd undoes every step Add may have taken and returns cause, joined with any rollback failure.
// It runs even when the caller's context has ended.
func (manager *Manager) rollbackAdd(executionContext context.Context, parent shared.RepositoryHandle, transaction addTransaction, cause error) error {
	rollbackContext := context.WithoutCancel(executionContext)
	manager.logger.Warn(rollbackStartedMessageConstant, zap.String(logFieldPathConstant, transaction.path), zap.Error(cause))

	rollbackErrors := []error{cause}
	if restoreError := manager.repositoryManager.RestoreIndexEntry(rollbackContext, parent, transaction.path, nil); restoreError != nil {
		rollbackErrors = append(rollbackErrors, ParentRepositoryError{Operation: unstageGitlinkParentOperationConstant, Cause: restoreError})
	}
	if restoreError := manager.repositoryManager.RestoreIndexEntry(rollbackContext, parent, manager.registry.MetadataFileName(), transaction.metadataIndexEntry); restoreError != nil {
		rollbackErrors = append(rollbackErrors, ParentRepositoryError{Operation: stageMetadataParentOperationConstant, Cause: restoreError})
	}
	metadataLocation := manager.registry.MetadataLocation(parent)
	if restoreError := manager.configStore.Restore(rollbackContext, metadataLocation, transaction.metadataSnapshot); restoreError != nil {
		rollbackErrors = append(rollbackErrors, surfaceError(metadataLocation, metadataSurfaceConstant, restoreSurfaceOperationConstant, restoreError))
	}
	localLocation := manager.registry.LocalConfigLocation(parent)
	if restoreError := manager.configStore.Restore(rollbackContext, localLocation, transaction.localSnapshot); restoreError != nil {
		rollbackErrors = append(rollbackErrors, surfaceError(localLocation, localConfigSurfaceConstant, restoreSurfaceOperationConstant, restoreError))
	}
	if len(transaction.createdRoot) > 0 {
		if removeError := manager.fileSystem.RemoveAll(transaction.createdRoot); removeError != nil {
			rollbackErrors = append(rollbackErrors, FilesystemError{Path: transaction.createdRoot, Operation: deleteCheckoutOperationConstant, Cause: removeError})
		}
	}

	if len(rollbackErrors) == 1 {
		return cause
	}
	joinedError := errors.Join(rollbackErrors...)
	manager.logger.Error(rollbackIncompleteMessageConstant, zap.String(logFieldPathConstant, transaction.path), zap.Error(joinedError))
	return joinedError
}

func (manager *Manager) resolveUpdateTargets(executionContext context.Context, parent shared.RepositoryHandle, paths []string) ([]updateTarget, error) {
	if len(paths) == 0 {
		steps, collectError := collectSteps(manager.walker.WalkIndex(executionContext, parent))
		if collectError != nil {
			return nil, collectError
		}
		targets := make([]updateTarget, 0, len(steps))
		for _, step := range steps {
			if !step.Entry.Initialized || len(step.Entry.URL) == 0 || step.Child == nil || step.Status == StatusMissing {
				manager.logger.Info(referenceSkippedMessageConstant, zap.String(logFieldPathConstant, step.Entry.Path), zap.String(logFieldReasonConstant, string(step.Status)))
				continue
			}
			targets = append(targets, updateTarget{step: step})
		}
		return targets, nil
	}

	seenPaths := map[string]struct{}{}
	targets := make([]updateTarget, 0, len(paths))
	for _, path := range paths {
		normalizedPath, normalizationError := pathutils.NormalizeReferencePath(path)
		if normalizationError != nil {
			return nil, NotFoundError{Path: path}
		}
		if _, seen := seenPaths[normalizedPath]; seen {
			continue
		}
		seenPaths[normalizedPath] = struct{}{}

		step, found, findError := findStep(FilterByPath(manager.walker.WalkIndex(executionContext, parent), normalizedPath))
		if findError != nil {
			return nil, findError
		}
		if !found || len(step.Entry.URL) == 0 {
			return nil, NotFoundError{Path: normalizedPath}
		}
		if step.Child == nil || step.Status == StatusMissing {
			return nil, ChildRepositoryError{Path: normalizedPath, Operation: pullChildOperationConstant, Cause: ErrChildNotCheckedOut}
		}
		targets = append(targets, updateTarget{step: step})
	}
	sort.Slice(targets, func(first int, second int) bool {
		return targets[first].step.Entry.Path < targets[second].step.Entry.Path
	})
	return targets, nil
}

func (manager *Manager) pullTargets(executionContext context.Context, targets []updateTarget) error {
	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(manager.updateConcurrency)
	for index := range targets {
		target := &targets[index]
		group.Go(func() error {
			fetchContext, cancelFetch := manager.withFetchTimeout(groupContext)
			defer cancelFetch()
			target.pulled = true
			newCommit, pullError := manager.repositoryManager.Pull(fetchContext, *target.step.Child, shared.OriginRemoteNameConstant, target.step.Entry.Branch)
			if pullError != nil {
				return ChildRepositoryError{Path: target.step.Entry.Path, Operation: pullChildOperationConstant, Cause: pullError}
			}
			target.newCommit = newCommit
			return nil
		})
	}
	return group.Wait()
}

// rollbackUpdate restores staged pins and moves pulled children back to the commit they had before.
func (manager *Manager) rollbackUpdate(executionContext context.Context, parent shared.RepositoryHandle, targets []updateTarget, cause error) {
	rollbackContext := context.WithoutCancel(executionContext)
	manager.logger.Warn(rollbackStartedMessageConstant, zap.Error(cause))

	for _, target := range targets {
		path := target.step.Entry.Path
		if target.staged {
			if restoreError := manager.repositoryManager.RestoreIndexEntry(rollbackContext, parent, path, target.previousIndexEntry); restoreError != nil {
				manager.logger.Error(rollbackIncompleteMessageConstant, zap.String(logFieldPathConstant, path), zap.Error(restoreError))
			}
		}
		if !target.pulled || target.step.Child == nil || len(target.step.Entry.WorkingCommit) == 0 {
			continue
		}
		currentCommit, commitError := manager.repositoryManager.CurrentCommit(rollbackContext, *target.step.Child)
		if commitError == nil && currentCommit == target.step.Entry.WorkingCommit {
			continue
		}
		if resetError := manager.repositoryManager.ResetKeep(rollbackContext, *target.step.Child, target.step.Entry.WorkingCommit); resetError != nil {
			manager.logger.Error(rollbackIncompleteMessageConstant,
				zap.String(logFieldPathConstant, path),
				zap.Error(ChildRepositoryError{Path: path, Operation: resetChildOperationConstant, Cause: resetError}),
			)
		}
	}
}

func (manager *Manager) syncChildRemote(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry, resolvedURL string) (bool, error) {
	childHandle, openError := manager.repositoryManager.Open(executionContext, filepath.Join(parent.WorkTreePath, filepath.FromSlash(entry.Path)))
	if openError != nil {
		var notRepository shared.NotARepositoryError
		if errors.As(openError, &notRepository) {
			return false, nil
		}
		return false, ChildRepositoryError{Path: entry.Path, Operation: openChildOperationConstant, Cause: openError}
	}
	currentURL, readError := manager.repositoryManager.GetRemoteURL(executionContext, childHandle, shared.OriginRemoteNameConstant)
	if readError != nil {
		return false, ChildRepositoryError{Path: entry.Path, Operation: readRemoteChildOperationConstant, Cause: readError}
	}
	if currentURL == resolvedURL {
		return false, nil
	}
	if setError := manager.repositoryManager.SetRemoteURL(executionContext, childHandle, shared.OriginRemoteNameConstant, resolvedURL); setError != nil {
		return false, ChildRepositoryError{Path: entry.Path, Operation: setRemoteChildOperationConstant, Cause: setError}
	}
	return true, nil
}

// requireCleanCheckout fails when a repository at absolutePath has uncommitted changes. A path holding no
// repository of its own passes.
func (manager *Manager) requireCleanCheckout(executionContext context.Context, path string, absolutePath string) error {
	childHandle, openError := manager.repositoryManager.Open(executionContext, absolutePath)
	if openError != nil {
		var notRepository shared.NotARepositoryError
		if errors.As(openError, &notRepository) {
			return nil
		}
		return ChildRepositoryError{Path: path, Operation: openChildOperationConstant, Cause: openError}
	}
	status, statusError := manager.repositoryManager.Status(executionContext, childHandle)
	if statusError != nil {
		return ChildRepositoryError{Path: path, Operation: inspectStatusChildOperationConstant, Cause: statusError}
	}
	if !status.Clean {
		return ChildRepositoryError{Path: path, Operation: inspectStatusChildOperationConstant, Cause: ErrCheckoutHasChanges}
	}
	return nil
}

// checkoutRemovable reports whether the checkout at absolutePath should be deleted. An unregistered
// path is only deleted when it holds a repository of its own, which is what an interrupted removal leaves.
func (manager *Manager) checkoutRemovable(executionContext context.Context, absolutePath string, registered bool) (bool, error) {
	if _, statError := manager.fileSystem.Lstat(absolutePath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return false, nil
		}
		return false, statError
	}
	if registered {
		return true, nil
	}
	if _, openError := manager.repositoryManager.Open(executionContext, absolutePath); openError != nil {
		return false, nil
	}
	return true, nil
}

func (manager *Manager) partialRemoval(path string, cause FilesystemError, surfacesRemoved bool) error {
	if !surfacesRemoved {
		return cause
	}
	manager.logger.Warn(cleanupPendingMessageConstant, zap.String(logFieldPathConstant, path), zap.Error(cause))
	return PartialRemovalError{Path: path, Cause: cause}
}

func (manager *Manager) restoreCheckout(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry) (shared.RepositoryHandle, error) {
	absolutePath, containmentError := pathutils.ResolveContainedPath(parent.WorkTreePath, entry.Path)
	if containmentError != nil {
		return shared.RepositoryHandle{}, PathConflictError{Path: entry.Path, Reason: outsideWorkTreeReasonConstant, Cause: containmentError}
	}
	createdRoot := manager.firstMissingPath(parent.WorkTreePath, absolutePath)

	fetchContext, cancelFetch := manager.withFetchTimeout(executionContext)
	defer cancelFetch()
	childHandle, cloneError := manager.repositoryManager.Clone(fetchContext, entry.FetchURL(), absolutePath, shared.CloneOptions{Branch: entry.Branch})
	if cloneError != nil {
		if len(createdRoot) > 0 {
			_ = manager.fileSystem.RemoveAll(createdRoot)
		}
		return shared.RepositoryHandle{}, FetchError{URL: entry.FetchURL(), Path: entry.Path, Cause: cloneError}
	}
	manager.logger.Info(referenceClonedMessageConstant, zap.String(logFieldPathConstant, entry.Path), zap.String(logFieldURLConstant, entry.FetchURL()))
	return childHandle, nil
}

// checkoutPin checks the staged commit out, fetching once when the commit is not present yet.
func (manager *Manager) checkoutPin(executionContext context.Context, childHandle shared.RepositoryHandle, entry ReferenceEntry) error {
	if manager.repositoryManager.Checkout(executionContext, childHandle, entry.CommittedCommit) == nil {
		return nil
	}
	originURL, readError := manager.repositoryManager.GetRemoteURL(executionContext, childHandle, shared.OriginRemoteNameConstant)
	if readError != nil {
		return ChildRepositoryError{Path: entry.Path, Operation: readRemoteChildOperationConstant, Cause: readError}
	}
	if len(originURL) == 0 {
		if setError := manager.repositoryManager.SetRemoteURL(executionContext, childHandle, shared.OriginRemoteNameConstant, entry.FetchURL()); setError != nil {
			return ChildRepositoryError{Path: entry.Path, Operation: setRemoteChildOperationConstant, Cause: setError}
		}
	}
	fetchContext, cancelFetch := manager.withFetchTimeout(executionContext)
	fetchError := manager.repositoryManager.Fetch(fetchContext, childHandle, shared.OriginRemoteNameConstant)
	cancelFetch()
	if fetchError != nil {
		return ChildRepositoryError{Path: entry.Path, Operation: fetchChildOperationConstant, Cause: fetchError}
	}
	if checkoutError := manager.repositoryManager.Checkout(executionContext, childHandle, entry.CommittedCommit); checkoutError != nil {
		return ChildRepositoryError{Path: entry.Path, Operation: checkoutChildOperationConstant, Cause: checkoutError}
	}
	return nil
}

func (manager *Manager) stageMetadataFile(executionContext context.Context, parent shared.RepositoryHandle) error {
	metadataFileName := manager.registry.MetadataFileName()
	var stageError error
	if _, statError := manager.fileSystem.Lstat(filepath.Join(parent.WorkTreePath, metadataFileName)); statError == nil {
		stageError = manager.repositoryManager.StagePath(executionContext, parent, metadataFileName)
	} else {
		stageError = manager.repositoryManager.UnstagePath(executionContext, parent, metadataFileName)
	}
	if stageError != nil {
		return ParentRepositoryError{Operation: stageMetadataParentOperationConstant, Cause: stageError}
	}
	return nil
}

// resolveFetchURL applies a relative url to the parent's origin url, or to the parent's own
// working tree when it has no origin.
func (manager *Manager) resolveFetchURL(executionContext context.Context, parent shared.RepositoryHandle, url string) (string, error) {
	if !gitrepo.IsRelativeURL(url) {
		return strings.TrimSpace(url), nil
	}
	baseURL, remoteError := manager.repositoryManager.GetRemoteURL(executionContext, parent, shared.OriginRemoteNameConstant)
	if remoteError != nil {
		return "", ParentRepositoryError{Operation: readRemoteParentOperationConstant, Cause: remoteError}
	}
	if len(baseURL) == 0 {
		baseURL = parent.WorkTreePath
	}
	return gitrepo.ResolveRelativeURL(baseURL, url)
}

// firstMissingPath returns the outermost directory that creating targetPath would create, or an empty
// string when targetPath already exists.
func (manager *Manager) firstMissingPath(rootPath string, targetPath string) string {
	if _, statError := manager.fileSystem.Lstat(targetPath); statError == nil {
		return ""
	}
	candidate := targetPath
	for {
		parentDirectory := filepath.Dir(candidate)
		if parentDirectory == candidate || filepath.Clean(parentDirectory) == filepath.Clean(rootPath) || !pathutils.IsWithin(rootPath, parentDirectory) {
			return candidate
		}
		if _, statError := manager.fileSystem.Lstat(parentDirectory); statError == nil {
			return candidate
		}
		candidate = parentDirectory
	}
}

func (manager *Manager) withFetchTimeout(executionContext context.Context) (context.Context, context.CancelFunc) {
	if manager.fetchTimeout > 0 {
		return context.WithTimeout(executionContext, manager.fetchTimeout)
	}
	return context.WithCancel(executionContext)
}

func collectSteps(sequence iter.Seq2[WalkStep, error]) ([]WalkStep, error) {
	steps := make([]WalkStep, 0)
	for step, stepError := range sequence {
		if stepError != nil {
			return nil, stepError
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func collectStates(sequence iter.Seq2[WalkStep, error]) ([]ReferenceState, error) {
	steps, collectError := collectSteps(sequence)
	if collectError != nil {
		return nil, collectError
	}
	states := make([]ReferenceState, 0, len(steps))
	for _, step := range steps {
		states = append(states, step.State())
	}
	return states, nil
}

func findStep(sequence iter.Seq2[WalkStep, error]) (WalkStep, bool, error) {
	for step, stepError := range sequence {
		if stepError != nil {
			return WalkStep{}, false, stepError
		}
		return step, true, nil
	}
	return WalkStep{}, false, nil
}

func selectEntries(entries []ReferenceEntry, paths []string) ([]ReferenceEntry, error) {
	if len(paths) == 0 {
		return entries, nil
	}
	entriesByPath := make(map[string]ReferenceEntry, len(entries))
	for _, entry := range entries {
		entriesByPath[entry.Path] = entry
	}
	selected := make([]ReferenceEntry, 0, len(paths))
	seenPaths := map[string]struct{}{}
	for _, path := range paths {
		normalizedPath, normalizationError := pathutils.NormalizeReferencePath(path)
		if normalizationError != nil {
			return nil, NotFoundError{Path: path}
		}
		entry, found := entriesByPath[normalizedPath]
		if !found {
			return nil, NotFoundError{Path: normalizedPath}
		}
		if _, seen := seenPaths[normalizedPath]; seen {
			continue
		}
		seenPaths[normalizedPath] = struct{}{}
		selected = append(selected, entry)
	}
	sort.Slice(selected, func(first int, second int) bool {
		return selected[first].Path < selected[second].Path
	})
	return selected, nil
}

func selectSteps(steps []WalkStep, paths []string) ([]WalkStep, bool, error) {
	if len(paths) == 0 {
		return steps, false, nil
	}
	stepsByPath := make(map[string]WalkStep, len(steps))
	for _, step := range steps {
		if len(step.Entry.URL) > 0 {
			stepsByPath[step.Entry.Path] = step
		}
	}
	selected := make([]WalkStep, 0, len(paths))
	seenPaths := map[string]struct{}{}
	for _, path := range paths {
		normalizedPath, normalizationError := pathutils.NormalizeReferencePath(path)
		if normalizationError != nil {
			return nil, true, NotFoundError{Path: path}
		}
		step, found := stepsByPath[normalizedPath]
		if !found {
			return nil, true, NotFoundError{Path: normalizedPath}
		}
		if _, seen := seenPaths[normalizedPath]; seen {
			continue
		}
		seenPaths[normalizedPath] = struct{}{}
		selected = append(selected, step)
	}
	sort.Slice(selected, func(first int, second int) bool {
		return selected[first].Entry.Path < selected[second].Entry.Path
	})
	return selected, true, nil
}
