package submodules_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"

	"github.com/temirov/subrepo/internal/repos/shared"
)

const (
	fakeParentWorkTreeConstant = "/workspace/parent"
	fakeMetadataFileConstant   = ".gitmodules"
	fakeCommittedBlobConstant  = "HEAD:.gitmodules"
	submoduleSectionName       = "submodule"
)

var errUnexpectedCall = errors.New("unexpected call")

func fakeParentHandle() shared.RepositoryHandle {
	return shared.RepositoryHandle{
		WorkTreePath:     fakeParentWorkTreeConstant,
		GitDirectoryPath: filepath.Join(fakeParentWorkTreeConstant, ".git"),
	}
}

// fakeConfigStore keeps sections in memory, keyed by file path or blob reference.
type fakeConfigStore struct {
	mutex     sync.Mutex
	surfaces  map[string]map[string]shared.ConfigSection
	writeFail map[string]error
	writes    []string
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{surfaces: map[string]map[string]shared.ConfigSection{}, writeFail: map[string]error{}}
}

func locationKey(location shared.ConfigLocation) string {
	if location.ReadOnly() {
		return location.BlobReference
	}
	return location.FilePath
}

func (store *fakeConfigStore) put(key string, subsection string, values map[string]string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	surface, exists := store.surfaces[key]
	if !exists {
		surface = map[string]shared.ConfigSection{}
		store.surfaces[key] = surface
	}
	copied := map[string]string{}
	for name, value := range values {
		copied[name] = value
	}
	surface[subsection] = shared.ConfigSection{Section: submoduleSectionName, Subsection: subsection, Values: copied}
}

func (store *fakeConfigStore) section(key string, subsection string) (shared.ConfigSection, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	section, exists := store.surfaces[key][subsection]
	return section, exists
}

func (store *fakeConfigStore) exists(key string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	_, exists := store.surfaces[key]
	return exists
}

func (store *fakeConfigStore) ReadSections(_ context.Context, location shared.ConfigLocation, _ string) ([]shared.ConfigSection, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	sections := make([]shared.ConfigSection, 0)
	for _, section := range store.surfaces[locationKey(location)] {
		sections = append(sections, section)
	}
	sort.Slice(sections, func(first int, second int) bool {
		return sections[first].Subsection < sections[second].Subsection
	})
	return sections, nil
}

func (store *fakeConfigStore) WriteSection(_ context.Context, location shared.ConfigLocation, section shared.ConfigSection) error {
	key := locationKey(location)
	store.mutex.Lock()
	failure := store.writeFail[key]
	store.writes = append(store.writes, key)
	store.mutex.Unlock()
	if failure != nil {
		return failure
	}

	existing, _ := store.section(key, section.Subsection)
	merged := map[string]string{}
	for name, value := range existing.Values {
		merged[name] = value
	}
	for name, value := range section.Values {
		if len(value) == 0 {
			delete(merged, name)
			continue
		}
		merged[name] = value
	}
	store.put(key, section.Subsection, merged)
	return nil
}

func (store *fakeConfigStore) UnsetSection(_ context.Context, location shared.ConfigLocation, _ string, subsection string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	surface := store.surfaces[locationKey(location)]
	if _, exists := surface[subsection]; !exists {
		return false, nil
	}
	delete(surface, subsection)
	return true, nil
}

func (store *fakeConfigStore) Snapshot(_ context.Context, location shared.ConfigLocation) (shared.ConfigSnapshot, error) {
	return shared.ConfigSnapshot{Exists: store.exists(locationKey(location))}, nil
}

func (store *fakeConfigStore) Restore(context.Context, shared.ConfigLocation, shared.ConfigSnapshot) error {
	return nil
}

func (store *fakeConfigStore) RemoveFile(_ context.Context, location shared.ConfigLocation) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.surfaces, locationKey(location))
	return nil
}

// fakeRepositoryManager answers the read-only calls the walker makes.
// Any other call panics through the nil embedded interface.
type fakeRepositoryManager struct {
	shared.GitRepositoryManager

	mutex     sync.Mutex
	gitlinks  map[shared.GitlinkSource][]shared.Gitlink
	checkouts map[string]string
	ancestors map[string]bool
	headless  map[string]bool
	unread    map[string]bool
	opened    []string
}

func newFakeRepositoryManager() *fakeRepositoryManager {
	return &fakeRepositoryManager{
		gitlinks:  map[shared.GitlinkSource][]shared.Gitlink{},
		checkouts: map[string]string{},
		ancestors: map[string]bool{},
		headless:  map[string]bool{},
		unread:    map[string]bool{},
	}
}

func (manager *fakeRepositoryManager) checkOut(relativePath string, commit string) {
	manager.checkouts[filepath.Join(fakeParentWorkTreeConstant, filepath.FromSlash(relativePath))] = commit
}

func (manager *fakeRepositoryManager) openedCount() int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return len(manager.opened)
}

func (manager *fakeRepositoryManager) Open(_ context.Context, repositoryPath string) (shared.RepositoryHandle, error) {
	manager.mutex.Lock()
	manager.opened = append(manager.opened, repositoryPath)
	manager.mutex.Unlock()
	if _, checkedOut := manager.checkouts[repositoryPath]; !checkedOut {
		return shared.RepositoryHandle{}, shared.NotARepositoryError{Path: repositoryPath}
	}
	return shared.RepositoryHandle{WorkTreePath: repositoryPath, GitDirectoryPath: filepath.Join(repositoryPath, ".git")}, nil
}

func (manager *fakeRepositoryManager) CurrentCommit(_ context.Context, handle shared.RepositoryHandle) (string, error) {
	commit, checkedOut := manager.checkouts[handle.WorkTreePath]
	if !checkedOut || manager.headless[handle.WorkTreePath] || manager.unread[handle.WorkTreePath] {
		return "", errUnexpectedCall
	}
	return commit, nil
}

func (manager *fakeRepositoryManager) BlobExists(_ context.Context, handle shared.RepositoryHandle, _ string) (bool, error) {
	return !manager.headless[handle.WorkTreePath], nil
}

func (manager *fakeRepositoryManager) markChild(marks map[string]bool, relativePath string) {
	manager.checkOut(relativePath, "")
	marks[filepath.Join(fakeParentWorkTreeConstant, filepath.FromSlash(relativePath))] = true
}

func (manager *fakeRepositoryManager) IsAncestor(_ context.Context, _ shared.RepositoryHandle, ancestor string, descendant string) (bool, error) {
	return manager.ancestors[ancestor+".."+descendant], nil
}

func (manager *fakeRepositoryManager) ListGitlinks(_ context.Context, _ shared.RepositoryHandle, source shared.GitlinkSource) ([]shared.Gitlink, error) {
	return append([]shared.Gitlink(nil), manager.gitlinks[source]...), nil
}
