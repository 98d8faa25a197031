package submodules

import (
	"errors"
	"fmt"
)

const (
	pathConflictErrorTemplateConstant       = "path %q cannot hold a reference: %s"
	pathConflictCauseErrorTemplateConstant  = "path %q cannot hold a reference: %s: %v"
	conflictErrorTemplateConstant           = "reference %q already uses %s in the %s, refusing to replace it with %s"
	notFoundErrorTemplateConstant           = "no reference registered at %q"
	fetchErrorTemplateConstant              = "failed to fetch %s into %q: %v"
	childRepositoryErrorTemplateConstant    = "child repository %q: %s failed: %v"
	parentRepositoryErrorTemplateConstant   = "parent repository: %s failed: %v"
	filesystemErrorTemplateConstant         = "filesystem: %s %q failed: %v"
	partialRemovalErrorTemplateConstant     = "reference %q was unregistered but its checkout remains: %v"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	configStoreMissingMessageConstant       = "configuration store not configured"
	registryMissingMessageConstant          = "registry not configured"
	walkerMissingMessageConstant            = "walker not configured"
)

// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// ErrConfigStoreNotConfigured indicates the configuration store dependency was missing.
var ErrConfigStoreNotConfigured = errors.New(configStoreMissingMessageConstant)

// ErrRegistryNotConfigured indicates the registry dependency was missing.
var ErrRegistryNotConfigured = errors.New(registryMissingMessageConstant)

// ErrWalkerNotConfigured indicates the walker dependency was missing.
var ErrWalkerNotConfigured = errors.New(walkerMissingMessageConstant)

// PathConflictError reports a target path that is already used or is not a valid location inside the parent.
type PathConflictError struct {
	Path   string
	Reason string
	Cause  error
}

// Error describes the conflict.
func (conflict PathConflictError) Error() string {
	if conflict.Cause != nil {
		return fmt.Sprintf(pathConflictCauseErrorTemplateConstant, conflict.Path, conflict.Reason, conflict.Cause)
	}
	return fmt.Sprintf(pathConflictErrorTemplateConstant, conflict.Path, conflict.Reason)
}

// Unwrap exposes the underlying cause.
func (conflict PathConflictError) Unwrap() error {
	return conflict.Cause
}

// ConflictError reports a registry surface that already binds the path to a different url.
type ConflictError struct {
	Path         string
	Surface      string
	ExistingURL  string
	RequestedURL string
}

// Error describes the conflict.
func (conflict ConflictError) Error() string {
	return fmt.Sprintf(conflictErrorTemplateConstant, conflict.Path, conflict.ExistingURL, conflict.Surface, conflict.RequestedURL)
}

// NotFoundError reports an operation on a path without a registered reference.
type NotFoundError struct {
	Path string
}

// Error describes the missing reference.
func (notFound NotFoundError) Error() string {
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFound.Path)
}

// FetchError reports a child repository that could not be obtained.
type FetchError struct {
	URL   string
	Path  string
	Cause error
}

// Error describes the fetch failure.
func (fetchFailure FetchError) Error() string {
	return fmt.Sprintf(fetchErrorTemplateConstant, fetchFailure.URL, fetchFailure.Path, fetchFailure.Cause)
}

// Unwrap exposes the underlying cause.
func (fetchFailure FetchError) Unwrap() error {
	return fetchFailure.Cause
}

// ChildRepositoryError reports a failed git operation inside a child repository.
type ChildRepositoryError struct {
	Path      string
	Operation string
	Cause     error
}

// Error describes the child failure.
func (childFailure ChildRepositoryError) Error() string {
	return fmt.Sprintf(childRepositoryErrorTemplateConstant, childFailure.Path, childFailure.Operation, childFailure.Cause)
}

// Unwrap exposes the underlying cause.
func (childFailure ChildRepositoryError) Unwrap() error {
	return childFailure.Cause
}

// ParentRepositoryError reports a failed index or history operation in the parent repository.
type ParentRepositoryError struct {
	Operation string
	Cause     error
}

// Error describes the parent failure.
func (parentFailure ParentRepositoryError) Error() string {
	return fmt.Sprintf(parentRepositoryErrorTemplateConstant, parentFailure.Operation, parentFailure.Cause)
}

// Unwrap exposes the underlying cause.
func (parentFailure ParentRepositoryError) Unwrap() error {
	return parentFailure.Cause
}

// FilesystemError reports a failed creation, deletion or surface write.
type FilesystemError struct {
	Path      string
	Operation string
	Cause     error
}

// Error describes the filesystem failure.
func (filesystemFailure FilesystemError) Error() string {
	return fmt.Sprintf(filesystemErrorTemplateConstant, filesystemFailure.Operation, filesystemFailure.Path, filesystemFailure.Cause)
}

// Unwrap exposes the underlying cause.
func (filesystemFailure FilesystemError) Unwrap() error {
	return filesystemFailure.Cause
}

// PartialRemovalError reports a removal whose surfaces were torn down while the checkout could not be deleted.
// Retrying the removal is safe.
type PartialRemovalError struct {
	Path  string
	Cause FilesystemError
}

// Error describes the pending cleanup.
func (partialRemoval PartialRemovalError) Error() string {
	return fmt.Sprintf(partialRemovalErrorTemplateConstant, partialRemoval.Path, partialRemoval.Cause)
}

// Unwrap exposes the filesystem failure.
func (partialRemoval PartialRemovalError) Unwrap() error {
	return partialRemoval.Cause
}
