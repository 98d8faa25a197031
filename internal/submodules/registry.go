package submodules

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/subrepo/internal/repos/shared"
	pathutils "github.com/temirov/subrepo/internal/utils/path"
)

const (
	// DefaultMetadataFileNameConstant is the committed metadata file at the parent working tree root.
	DefaultMetadataFileNameConstant = ".gitmodules"

	submoduleSectionConstant         = "submodule"
	pathVariableConstant             = "path"
	urlVariableConstant              = "url"
	branchVariableConstant           = "branch"
	activeVariableConstant           = "active"
	activeEnabledValueConstant       = "true"
	activeDisabledValueConstant      = "false"
	committedRevisionConstant        = "HEAD"
	blobReferenceTemplateConstant    = "%s:%s"
	metadataLockFileNameConstant     = "metadata.lock"
	localConfigLockFileNameConstant  = "config.lock"
	metadataSurfaceConstant          = "metadata file"
	localConfigSurfaceConstant       = "local configuration"
	readSurfaceOperationConstant     = "read"
	writeSurfaceOperationConstant    = "write"
	removeSurfaceOperationConstant   = "remove"
	restoreSurfaceOperationConstant  = "restore"
	surfaceOperationTemplateConstant = "%s %s"
)

// Registry reads and writes the committed metadata file and the parent's local configuration.
// References are keyed by their working tree path; sections created here are named after the path.
type Registry struct {
	configStore      shared.GitConfigStore
	metadataFileName string
}

// RemovedSurfaces reports which surfaces held a section for a removed reference.
type RemovedSurfaces struct {
	Metadata            bool
	LocalConfiguration  bool
	MetadataFileDeleted bool
}

// Any reports whether any surface changed.
func (removed RemovedSurfaces) Any() bool {
	return removed.Metadata || removed.LocalConfiguration
}

// NewRegistry constructs a Registry. An empty metadata file name selects .gitmodules.
func NewRegistry(configStore shared.GitConfigStore, metadataFileName string) (*Registry, error) {
	if configStore == nil {
		return nil, ErrConfigStoreNotConfigured
	}
	trimmedName := strings.TrimSpace(metadataFileName)
	if len(trimmedName) == 0 {
		trimmedName = DefaultMetadataFileNameConstant
	}
	return &Registry{configStore: configStore, metadataFileName: trimmedName}, nil
}

// MetadataFileName returns the metadata file name relative to the parent working tree root.
func (registry *Registry) MetadataFileName() string {
	return registry.metadataFileName
}

// MetadataLocation addresses the working copy of the metadata file.
func (registry *Registry) MetadataLocation(parent shared.RepositoryHandle) shared.ConfigLocation {
	return shared.ConfigLocation{
		FilePath:         filepath.Join(parent.WorkTreePath, registry.metadataFileName),
		WorkingDirectory: parent.WorkTreePath,
		LockPath:         filepath.Join(parent.LockDirectoryPath(), metadataLockFileNameConstant),
	}
}

// CommittedMetadataLocation addresses the metadata file as recorded at HEAD.
func (registry *Registry) CommittedMetadataLocation(parent shared.RepositoryHandle) shared.ConfigLocation {
	return shared.ConfigLocation{
		BlobReference:    fmt.Sprintf(blobReferenceTemplateConstant, committedRevisionConstant, filepath.ToSlash(registry.metadataFileName)),
		WorkingDirectory: parent.WorkTreePath,
	}
}

// LocalConfigLocation addresses the parent's local configuration.
func (registry *Registry) LocalConfigLocation(parent shared.RepositoryHandle) shared.ConfigLocation {
	return shared.ConfigLocation{
		FilePath:         parent.LocalConfigPath(),
		WorkingDirectory: parent.WorkTreePath,
		LockPath:         filepath.Join(parent.LockDirectoryPath(), localConfigLockFileNameConstant),
	}
}

// ListEntries returns the references of the working metadata file merged with the local configuration,
// ordered by path. Entries without a local section are not initialized.
func (registry *Registry) ListEntries(executionContext context.Context, parent shared.RepositoryHandle) ([]ReferenceEntry, error) {
	return registry.listEntries(executionContext, parent, registry.MetadataLocation(parent))
}

// ListCommittedEntries is ListEntries evaluated against the metadata file recorded at HEAD.
func (registry *Registry) ListCommittedEntries(executionContext context.Context, parent shared.RepositoryHandle) ([]ReferenceEntry, error) {
	return registry.listEntries(executionContext, parent, registry.CommittedMetadataLocation(parent))
}

// ListStaleEntries returns local configuration sections that no metadata section refers to.
func (registry *Registry) ListStaleEntries(executionContext context.Context, parent shared.RepositoryHandle) ([]ReferenceEntry, error) {
	metadataSections, localSections, readError := registry.readSurfaces(executionContext, parent, registry.MetadataLocation(parent))
	if readError != nil {
		return nil, readError
	}
	knownNames := map[string]struct{}{}
	for _, section := range metadataSections {
		knownNames[section.Subsection] = struct{}{}
	}

	staleEntries := make([]ReferenceEntry, 0)
	for _, section := range localSections {
		if _, known := knownNames[section.Subsection]; known {
			continue
		}
		staleEntries = append(staleEntries, ReferenceEntry{
			Name:        section.Subsection,
			Path:        section.Subsection,
			LocalURL:    section.Values[urlVariableConstant],
			Initialized: true,
		})
	}
	return staleEntries, nil
}

// LookupEntry returns the reference registered in the working metadata file at path.
func (registry *Registry) LookupEntry(executionContext context.Context, parent shared.RepositoryHandle, path string) (ReferenceEntry, bool, error) {
	entries, listError := registry.ListEntries(executionContext, parent)
	if listError != nil {
		return ReferenceEntry{}, false, listError
	}
	for _, entry := range entries {
		if entry.Path == path {
			return entry, true, nil
		}
	}
	return ReferenceEntry{}, false, nil
}

// UpsertEntry writes the entry's path, url and branch into the metadata file and its fetch url into the
// local configuration. A surface already binding the path to another url yields ConflictError and
// neither surface is touched. The metadata file is restored when the local write fails.
func (registry *Registry) UpsertEntry(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry) error {
	normalizedPath, pathError := pathutils.NormalizeReferencePath(entry.Path)
	if pathError != nil {
		return PathConflictError{Path: entry.Path, Reason: pathError.Error()}
	}
	entry.Path = normalizedPath
	if len(entry.Name) == 0 {
		entry.Name = normalizedPath
	}
	if conflictError := registry.checkConflict(executionContext, parent, entry); conflictError != nil {
		return conflictError
	}

	metadataLocation := registry.MetadataLocation(parent)
	metadataSnapshot, snapshotError := registry.configStore.Snapshot(executionContext, metadataLocation)
	if snapshotError != nil {
		return surfaceError(metadataLocation, metadataSurfaceConstant, readSurfaceOperationConstant, snapshotError)
	}

	metadataSection := shared.ConfigSection{
		Section:    submoduleSectionConstant,
		Subsection: entry.Name,
		Values: map[string]string{
			pathVariableConstant:   entry.Path,
			urlVariableConstant:    entry.URL,
			branchVariableConstant: entry.Branch,
		},
	}
	if writeError := registry.configStore.WriteSection(executionContext, metadataLocation, metadataSection); writeError != nil {
		return surfaceError(metadataLocation, metadataSurfaceConstant, writeSurfaceOperationConstant, writeError)
	}

	if localError := registry.writeLocalSection(executionContext, parent, entry.Name, entry.FetchURL()); localError != nil {
		if restoreError := registry.configStore.Restore(context.WithoutCancel(executionContext), metadataLocation, metadataSnapshot); restoreError != nil {
			return errors.Join(localError, surfaceError(metadataLocation, metadataSurfaceConstant, restoreSurfaceOperationConstant, restoreError))
		}
		return localError
	}
	return nil
}

// SetLocalURL records url as the fetch url of the reference and marks it active.
func (registry *Registry) SetLocalURL(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry, url string) error {
	name := entry.Name
	if len(name) == 0 {
		name = entry.Path
	}
	return registry.writeLocalSection(executionContext, parent, name, url)
}

// ResetLocalURL points the local section of the reference at url and reports whether it changed. An
// existing section keeps its other variables, so a reference deactivated by hand stays deactivated.
// A missing section is created active.
func (registry *Registry) ResetLocalURL(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry, url string) (bool, error) {
	name := entry.Name
	if len(name) == 0 {
		name = entry.Path
	}
	localLocation := registry.LocalConfigLocation(parent)
	localSections, readError := registry.configStore.ReadSections(executionContext, localLocation, submoduleSectionConstant)
	if readError != nil {
		return false, surfaceError(localLocation, localConfigSurfaceConstant, readSurfaceOperationConstant, readError)
	}
	for _, section := range localSections {
		if section.Subsection != name {
			continue
		}
		if section.Values[urlVariableConstant] == url {
			return false, nil
		}
		urlSection := shared.ConfigSection{
			Section:    submoduleSectionConstant,
			Subsection: name,
			Values:     map[string]string{urlVariableConstant: url},
		}
		if writeError := registry.configStore.WriteSection(executionContext, localLocation, urlSection); writeError != nil {
			return false, surfaceError(localLocation, localConfigSurfaceConstant, writeSurfaceOperationConstant, writeError)
		}
		return true, nil
	}
	if writeError := registry.writeLocalSection(executionContext, parent, name, url); writeError != nil {
		return false, writeError
	}
	return true, nil
}

// RemoveEntry deletes every section bound to path from both surfaces. Removing an absent entry succeeds.
// The metadata file is deleted once its last section is gone.
func (registry *Registry) RemoveEntry(executionContext context.Context, parent shared.RepositoryHandle, path string) (RemovedSurfaces, error) {
	metadataLocation := registry.MetadataLocation(parent)
	localLocation := registry.LocalConfigLocation(parent)
	metadataSections, localSections, readError := registry.readSurfaces(executionContext, parent, metadataLocation)
	if readError != nil {
		return RemovedSurfaces{}, readError
	}

	names := map[string]struct{}{path: {}}
	remainingMetadataSections := 0
	for _, section := range metadataSections {
		if sectionPath(section) == path || section.Subsection == path {
			names[section.Subsection] = struct{}{}
			continue
		}
		remainingMetadataSections++
	}

	removed := RemovedSurfaces{}
	for _, name := range sortedNames(names) {
		metadataRemoved, unsetError := registry.configStore.UnsetSection(executionContext, metadataLocation, submoduleSectionConstant, name)
		if unsetError != nil {
			return removed, surfaceError(metadataLocation, metadataSurfaceConstant, removeSurfaceOperationConstant, unsetError)
		}
		removed.Metadata = removed.Metadata || metadataRemoved
	}
	if removed.Metadata && remainingMetadataSections == 0 {
		if removeError := registry.configStore.RemoveFile(executionContext, metadataLocation); removeError != nil {
			return removed, surfaceError(metadataLocation, metadataSurfaceConstant, removeSurfaceOperationConstant, removeError)
		}
		removed.MetadataFileDeleted = true
	}

	for _, section := range localSections {
		if _, bound := names[section.Subsection]; !bound {
			continue
		}
		localRemoved, unsetError := registry.configStore.UnsetSection(executionContext, localLocation, submoduleSectionConstant, section.Subsection)
		if unsetError != nil {
			return removed, surfaceError(localLocation, localConfigSurfaceConstant, removeSurfaceOperationConstant, unsetError)
		}
		removed.LocalConfiguration = removed.LocalConfiguration || localRemoved
	}
	return removed, nil
}

// RemoveLocalSection deletes the local configuration section called name. It reports whether one existed.
func (registry *Registry) RemoveLocalSection(executionContext context.Context, parent shared.RepositoryHandle, name string) (bool, error) {
	localLocation := registry.LocalConfigLocation(parent)
	removed, unsetError := registry.configStore.UnsetSection(executionContext, localLocation, submoduleSectionConstant, name)
	if unsetError != nil {
		return false, surfaceError(localLocation, localConfigSurfaceConstant, removeSurfaceOperationConstant, unsetError)
	}
	return removed, nil
}

func (registry *Registry) listEntries(executionContext context.Context, parent shared.RepositoryHandle, metadataLocation shared.ConfigLocation) ([]ReferenceEntry, error) {
	metadataSections, localSections, readError := registry.readSurfaces(executionContext, parent, metadataLocation)
	if readError != nil {
		return nil, readError
	}
	localByName := make(map[string]shared.ConfigSection, len(localSections))
	for _, section := range localSections {
		localByName[section.Subsection] = section
	}

	entriesByPath := map[string]ReferenceEntry{}
	for _, section := range metadataSections {
		normalizedPath, pathError := pathutils.NormalizeReferencePath(declaredPath(section))
		if pathError != nil {
			continue
		}
		entry := ReferenceEntry{
			Name:   section.Subsection,
			Path:   normalizedPath,
			URL:    section.Values[urlVariableConstant],
			Branch: section.Values[branchVariableConstant],
		}
		if localSection, initialized := localByName[section.Subsection]; initialized {
			entry.LocalURL = localSection.Values[urlVariableConstant]
			entry.Initialized = !strings.EqualFold(localSection.Values[activeVariableConstant], activeDisabledValueConstant)
		}
		if _, duplicate := entriesByPath[normalizedPath]; duplicate {
			continue
		}
		entriesByPath[normalizedPath] = entry
	}

	entries := make([]ReferenceEntry, 0, len(entriesByPath))
	for _, entry := range entriesByPath {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(first int, second int) bool {
		return entries[first].Path < entries[second].Path
	})
	return entries, nil
}

func (registry *Registry) readSurfaces(executionContext context.Context, parent shared.RepositoryHandle, metadataLocation shared.ConfigLocation) ([]shared.ConfigSection, []shared.ConfigSection, error) {
	metadataSections, metadataError := registry.configStore.ReadSections(executionContext, metadataLocation, submoduleSectionConstant)
	if metadataError != nil {
		return nil, nil, surfaceError(metadataLocation, metadataSurfaceConstant, readSurfaceOperationConstant, metadataError)
	}
	localLocation := registry.LocalConfigLocation(parent)
	localSections, localError := registry.configStore.ReadSections(executionContext, localLocation, submoduleSectionConstant)
	if localError != nil {
		return nil, nil, surfaceError(localLocation, localConfigSurfaceConstant, readSurfaceOperationConstant, localError)
	}
	return metadataSections, localSections, nil
}

func (registry *Registry) checkConflict(executionContext context.Context, parent shared.RepositoryHandle, entry ReferenceEntry) error {
	metadataSections, localSections, readError := registry.readSurfaces(executionContext, parent, registry.MetadataLocation(parent))
	if readError != nil {
		return readError
	}
	for _, section := range metadataSections {
		if sectionPath(section) != entry.Path && section.Subsection != entry.Name {
			continue
		}
		existingURL := section.Values[urlVariableConstant]
		if len(existingURL) > 0 && existingURL != entry.URL {
			return ConflictError{Path: entry.Path, Surface: metadataSurfaceConstant, ExistingURL: existingURL, RequestedURL: entry.URL}
		}
	}
	for _, section := range localSections {
		if section.Subsection != entry.Name {
			continue
		}
		existingURL := section.Values[urlVariableConstant]
		if len(existingURL) > 0 && existingURL != entry.FetchURL() {
			return ConflictError{Path: entry.Path, Surface: localConfigSurfaceConstant, ExistingURL: existingURL, RequestedURL: entry.FetchURL()}
		}
	}
	return nil
}

func (registry *Registry) writeLocalSection(executionContext context.Context, parent shared.RepositoryHandle, name string, url string) error {
	localLocation := registry.LocalConfigLocation(parent)
	localSection := shared.ConfigSection{
		Section:    submoduleSectionConstant,
		Subsection: name,
		Values: map[string]string{
			urlVariableConstant:    url,
			activeVariableConstant: activeEnabledValueConstant,
		},
	}
	if writeError := registry.configStore.WriteSection(executionContext, localLocation, localSection); writeError != nil {
		return surfaceError(localLocation, localConfigSurfaceConstant, writeSurfaceOperationConstant, writeError)
	}
	return nil
}

func declaredPath(section shared.ConfigSection) string {
	if path, declared := section.Values[pathVariableConstant]; declared && len(strings.TrimSpace(path)) > 0 {
		return path
	}
	return section.Subsection
}

// sectionPath returns the normalized declared path, or the raw value when it does not normalize.
func sectionPath(section shared.ConfigSection) string {
	normalizedPath, pathError := pathutils.NormalizeReferencePath(declaredPath(section))
	if pathError != nil {
		return declaredPath(section)
	}
	return normalizedPath
}

func sortedNames(names map[string]struct{}) []string {
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return sorted
}

func surfaceError(location shared.ConfigLocation, surface string, operation string, cause error) error {
	path := location.FilePath
	if location.ReadOnly() {
		path = location.BlobReference
	}
	return FilesystemError{Path: path, Operation: fmt.Sprintf(surfaceOperationTemplateConstant, operation, surface), Cause: cause}
}
