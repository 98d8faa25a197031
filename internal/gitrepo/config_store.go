package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/temirov/subrepo/internal/repos/filesystem"
	"github.com/temirov/subrepo/internal/repos/shared"
)

const (
	configKeySeparatorConstant            = "."
	configKeyTemplateConstant             = "%s.%s.%s"
	configSectionTemplateConstant         = "%s.%s"
	configSectionPatternTemplateConstant  = "^%s\\."
	temporaryFileNameTemplateConstant     = ".%s.%s.tmp"
	lockRetryDelayConstant                = 25 * time.Millisecond
	defaultConfigFilePermissionsConstant  = fs.FileMode(0o644)
	configNoMatchExitCodeConstant         = 1
	configMissingKeyExitCodeConstant      = 5
	readSectionsErrorTemplateConstant     = "failed to read %s sections from %s: %w"
	writeSectionErrorTemplateConstant     = "failed to write %s %q to %s: %w"
	unsetSectionErrorTemplateConstant     = "failed to remove %s %q from %s: %w"
	snapshotErrorTemplateConstant         = "failed to snapshot %s: %w"
	restoreErrorTemplateConstant          = "failed to restore %s: %w"
	removeFileErrorTemplateConstant       = "failed to remove %s: %w"
	lockErrorTemplateConstant             = "failed to lock %s: %w"
	malformedConfigRecordTemplateConstant = "malformed configuration record %q"
)

// ErrReadOnlyConfigLocation indicates a mutation attempted on a committed blob.
var ErrReadOnlyConfigLocation = errors.New("configuration location is read-only")

// ErrLockNotAcquired indicates the advisory lock could not be taken before the context ended.
var ErrLockNotAcquired = errors.New("configuration lock not acquired")

// ConfigStore implements shared.GitConfigStore with `git config --file` edits applied to a temporary copy
// that is renamed over the target while an advisory lock is held.
type ConfigStore struct {
	executor   shared.GitExecutor
	fileSystem shared.FileSystem
}

// NewConfigStore constructs a ConfigStore backed by the OS filesystem.
func NewConfigStore(executor shared.GitExecutor) (*ConfigStore, error) {
	return NewConfigStoreWithFileSystem(executor, filesystem.OSFileSystem{})
}

// NewConfigStoreWithFileSystem constructs a ConfigStore with an explicit filesystem.
func NewConfigStoreWithFileSystem(executor shared.GitExecutor, fileSystem shared.FileSystem) (*ConfigStore, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &ConfigStore{executor: executor, fileSystem: fileSystem}, nil
}

// ReadSections returns every subsection of section, sorted by subsection name.
// A missing file or blob yields no sections.
func (store *ConfigStore) ReadSections(executionContext context.Context, location shared.ConfigLocation, section string) ([]shared.ConfigSection, error) {
	sourceArguments, available, sourceError := store.sourceArguments(executionContext, location)
	if sourceError != nil {
		return nil, fmt.Errorf(readSectionsErrorTemplateConstant, section, describeLocation(location), sourceError)
	}
	if !available {
		return nil, nil
	}

	arguments := append([]string{"config"}, sourceArguments...)
	arguments = append(arguments, "--null", "--get-regexp", fmt.Sprintf(configSectionPatternTemplateConstant, regexp.QuoteMeta(section)))
	output, executionError := store.runGit(executionContext, location, arguments...)
	if executionError != nil {
		if exitCode(executionError) == configNoMatchExitCodeConstant {
			return nil, nil
		}
		return nil, fmt.Errorf(readSectionsErrorTemplateConstant, section, describeLocation(location), executionError)
	}

	sections, parseError := parseConfigSections(output, section)
	if parseError != nil {
		return nil, fmt.Errorf(readSectionsErrorTemplateConstant, section, describeLocation(location), parseError)
	}
	return sections, nil
}

// WriteSection sets every value of the section, leaving other variables untouched.
// An empty value removes the variable.
func (store *ConfigStore) WriteSection(executionContext context.Context, location shared.ConfigLocation, section shared.ConfigSection) error {
	if location.ReadOnly() {
		return ErrReadOnlyConfigLocation
	}
	variableNames := make([]string, 0, len(section.Values))
	for variableName := range section.Values {
		variableNames = append(variableNames, variableName)
	}
	sort.Strings(variableNames)

	mutationError := store.withLock(executionContext, location, func() error {
		return store.replaceAtomically(executionContext, location, func(temporaryPath string) error {
			for _, variableName := range variableNames {
				key := fmt.Sprintf(configKeyTemplateConstant, section.Section, section.Subsection, variableName)
				value := section.Values[variableName]
				if len(value) == 0 {
					_, executionError := store.runGit(executionContext, location, "config", "--file", temporaryPath, "--unset-all", key)
					if executionError != nil && exitCode(executionError) != configMissingKeyExitCodeConstant {
						return executionError
					}
					continue
				}
				if _, executionError := store.runGit(executionContext, location, "config", "--file", temporaryPath, key, value); executionError != nil {
					return executionError
				}
			}
			return nil
		})
	})
	if mutationError != nil {
		return fmt.Errorf(writeSectionErrorTemplateConstant, section.Section, section.Subsection, describeLocation(location), mutationError)
	}
	return nil
}

// UnsetSection removes the subsection and reports whether it existed.
func (store *ConfigStore) UnsetSection(executionContext context.Context, location shared.ConfigLocation, section string, subsection string) (bool, error) {
	if location.ReadOnly() {
		return false, ErrReadOnlyConfigLocation
	}

	removed := false
	mutationError := store.withLock(executionContext, location, func() error {
		existingSections, readError := store.ReadSections(executionContext, location, section)
		if readError != nil {
			return readError
		}
		if !containsSubsection(existingSections, subsection) {
			return nil
		}
		replaceError := store.replaceAtomically(executionContext, location, func(temporaryPath string) error {
			_, executionError := store.runGit(executionContext, location, "config", "--file", temporaryPath, "--remove-section", fmt.Sprintf(configSectionTemplateConstant, section, subsection))
			return executionError
		})
		if replaceError != nil {
			return replaceError
		}
		removed = true
		return nil
	})
	if mutationError != nil {
		return false, fmt.Errorf(unsetSectionErrorTemplateConstant, section, subsection, describeLocation(location), mutationError)
	}
	return removed, nil
}

// Snapshot captures the current bytes of the file.
func (store *ConfigStore) Snapshot(executionContext context.Context, location shared.ConfigLocation) (shared.ConfigSnapshot, error) {
	if location.ReadOnly() {
		return shared.ConfigSnapshot{}, ErrReadOnlyConfigLocation
	}
	fileInfo, statError := store.fileSystem.Stat(location.FilePath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return shared.ConfigSnapshot{Exists: false}, nil
		}
		return shared.ConfigSnapshot{}, fmt.Errorf(snapshotErrorTemplateConstant, location.FilePath, statError)
	}
	content, readError := store.fileSystem.ReadFile(location.FilePath)
	if readError != nil {
		return shared.ConfigSnapshot{}, fmt.Errorf(snapshotErrorTemplateConstant, location.FilePath, readError)
	}
	return shared.ConfigSnapshot{Exists: true, Content: content, Permissions: fileInfo.Mode().Perm()}, nil
}

// Restore puts the file back exactly as captured, deleting it when it did not exist.
func (store *ConfigStore) Restore(executionContext context.Context, location shared.ConfigLocation, snapshot shared.ConfigSnapshot) error {
	if location.ReadOnly() {
		return ErrReadOnlyConfigLocation
	}
	restoreError := store.withLock(executionContext, location, func() error {
		if !snapshot.Exists {
			return store.removeIfPresent(location.FilePath)
		}
		temporaryPath := temporarySiblingPath(location.FilePath)
		permissions := snapshot.Permissions
		if permissions == 0 {
			permissions = defaultConfigFilePermissionsConstant
		}
		if writeError := store.fileSystem.WriteFile(temporaryPath, snapshot.Content, permissions); writeError != nil {
			return writeError
		}
		if renameError := store.fileSystem.Rename(temporaryPath, location.FilePath); renameError != nil {
			_ = store.removeIfPresent(temporaryPath)
			return renameError
		}
		return nil
	})
	if restoreError != nil {
		return fmt.Errorf(restoreErrorTemplateConstant, location.FilePath, restoreError)
	}
	return nil
}

// RemoveFile deletes the file. A missing file is not an error.
func (store *ConfigStore) RemoveFile(executionContext context.Context, location shared.ConfigLocation) error {
	if location.ReadOnly() {
		return ErrReadOnlyConfigLocation
	}
	removeError := store.withLock(executionContext, location, func() error {
		return store.removeIfPresent(location.FilePath)
	})
	if removeError != nil {
		return fmt.Errorf(removeFileErrorTemplateConstant, location.FilePath, removeError)
	}
	return nil
}

func (store *ConfigStore) sourceArguments(executionContext context.Context, location shared.ConfigLocation) ([]string, bool, error) {
	if location.ReadOnly() {
		if _, executionError := store.runGit(executionContext, location, "cat-file", "-e", location.BlobReference); executionError != nil {
			if exitCode(executionError) > 0 {
				return nil, false, nil
			}
			return nil, false, executionError
		}
		return []string{"--blob", location.BlobReference}, true, nil
	}
	if _, statError := store.fileSystem.Stat(location.FilePath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, statError
	}
	return []string{"--file", location.FilePath}, true, nil
}

// withLock serializes mutations of one surface across processes. Lock files live beside
// the git directory's own state, never in the working tree.
// Locks are not reentrant, so mutation helpers invoked while locked must not lock again.
func (store *ConfigStore) withLock(executionContext context.Context, location shared.ConfigLocation, action func() error) error {
	if len(location.LockPath) == 0 {
		return action()
	}
	if mkdirError := store.fileSystem.MkdirAll(filepath.Dir(location.LockPath), directoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(lockErrorTemplateConstant, location.LockPath, mkdirError)
	}
	fileLock := flock.New(location.LockPath)
	locked, lockError := fileLock.TryLockContext(executionContext, lockRetryDelayConstant)
	if lockError != nil {
		return fmt.Errorf(lockErrorTemplateConstant, location.LockPath, lockError)
	}
	if !locked {
		return fmt.Errorf(lockErrorTemplateConstant, location.LockPath, ErrLockNotAcquired)
	}
	defer func() {
		_ = fileLock.Unlock()
	}()
	return action()
}

// replaceAtomically copies the target to a uniquely named sibling, lets edit mutate the copy,
// and renames the copy over the target. The target is untouched unless every edit succeeds.
func (store *ConfigStore) replaceAtomically(executionContext context.Context, location shared.ConfigLocation, edit func(temporaryPath string) error) error {
	content := []byte{}
	permissions := defaultConfigFilePermissionsConstant
	if fileInfo, statError := store.fileSystem.Stat(location.FilePath); statError == nil {
		permissions = fileInfo.Mode().Perm()
		existingContent, readError := store.fileSystem.ReadFile(location.FilePath)
		if readError != nil {
			return readError
		}
		content = existingContent
	} else if !errors.Is(statError, fs.ErrNotExist) {
		return statError
	}

	temporaryPath := temporarySiblingPath(location.FilePath)
	if writeError := store.fileSystem.WriteFile(temporaryPath, content, permissions); writeError != nil {
		return writeError
	}
	if editError := edit(temporaryPath); editError != nil {
		_ = store.removeIfPresent(temporaryPath)
		return editError
	}
	if executionContext.Err() != nil {
		_ = store.removeIfPresent(temporaryPath)
		return executionContext.Err()
	}
	if renameError := store.fileSystem.Rename(temporaryPath, location.FilePath); renameError != nil {
		_ = store.removeIfPresent(temporaryPath)
		return renameError
	}
	return nil
}

func (store *ConfigStore) removeIfPresent(path string) error {
	removeError := store.fileSystem.Remove(path)
	if removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
		return removeError
	}
	return nil
}

func (store *ConfigStore) runGit(executionContext context.Context, location shared.ConfigLocation, arguments ...string) (string, error) {
	workingDirectory := location.WorkingDirectory
	if len(workingDirectory) == 0 && len(location.FilePath) > 0 {
		workingDirectory = filepath.Dir(location.FilePath)
	}
	return executeGit(executionContext, store.executor, workingDirectory, nil, arguments...)
}

func temporarySiblingPath(targetPath string) string {
	return filepath.Join(filepath.Dir(targetPath), fmt.Sprintf(temporaryFileNameTemplateConstant, filepath.Base(targetPath), uuid.NewString()))
}

func describeLocation(location shared.ConfigLocation) string {
	if location.ReadOnly() {
		return location.BlobReference
	}
	return location.FilePath
}

func containsSubsection(sections []shared.ConfigSection, subsection string) bool {
	for _, section := range sections {
		if section.Subsection == subsection {
			return true
		}
	}
	return false
}

// parseConfigSections reads `git config --null --get-regexp` output, where each record is
// "<section>.<subsection>.<variable>\n<value>\x00". Subsections may contain dots.
func parseConfigSections(output string, section string) ([]shared.ConfigSection, error) {
	sectionsByName := map[string]*shared.ConfigSection{}
	for _, record := range strings.Split(output, recordSeparatorConstant) {
		if len(record) == 0 {
			continue
		}
		key, value, _ := strings.Cut(record, lineSeparatorConstant)
		sectionName, remainder, hasSection := strings.Cut(key, configKeySeparatorConstant)
		variableSeparatorIndex := strings.LastIndex(remainder, configKeySeparatorConstant)
		if !hasSection || variableSeparatorIndex <= 0 || !strings.EqualFold(sectionName, section) {
			return nil, fmt.Errorf(malformedConfigRecordTemplateConstant, record)
		}
		subsection := remainder[:variableSeparatorIndex]
		variableName := strings.ToLower(remainder[variableSeparatorIndex+1:])

		existingSection, found := sectionsByName[subsection]
		if !found {
			existingSection = &shared.ConfigSection{Section: section, Subsection: subsection, Values: map[string]string{}}
			sectionsByName[subsection] = existingSection
		}
		existingSection.Values[variableName] = value
	}

	sections := make([]shared.ConfigSection, 0, len(sectionsByName))
	for _, parsedSection := range sectionsByName {
		sections = append(sections, *parsedSection)
	}
	sort.Slice(sections, func(first int, second int) bool {
		return sections[first].Subsection < sections[second].Subsection
	})
	return sections, nil
}

var _ shared.GitConfigStore = (*ConfigStore)(nil)
