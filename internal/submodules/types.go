package submodules

import "github.com/temirov/subrepo/internal/repos/shared"

// ReferenceStatus is derived from the committed pin, the checked out commit and the presence of the checkout.
type ReferenceStatus string

// Known reference statuses.
const (
	StatusUninitialized ReferenceStatus = "uninitialized"
	StatusInitialized   ReferenceStatus = "initialized"
	StatusDirtyAhead    ReferenceStatus = "dirty-ahead"
	StatusDirtyBehind   ReferenceStatus = "dirty-behind"
	StatusMissing       ReferenceStatus = "missing"
)

// ReferenceEntry binds a child repository to a path inside the parent working tree.
type ReferenceEntry struct {
	// Name is the section name on both surfaces. References created here are named after their path.
	Name   string
	Path   string
	URL    string
	Branch string

	// LocalURL is the url recorded in the parent's local configuration. It wins for fetches.
	LocalURL    string
	Initialized bool

	CommittedCommit string
	WorkingCommit   string
}

// FetchURL returns the url used to fetch the child.
func (entry ReferenceEntry) FetchURL() string {
	if len(entry.LocalURL) > 0 {
		return entry.LocalURL
	}
	return entry.URL
}

// ReferenceState pairs an entry with its derived status.
type ReferenceState struct {
	Entry  ReferenceEntry
	Status ReferenceStatus
}

// WalkStep is one resolved reference produced by a Walker. Child is nil when the checkout is absent.
type WalkStep struct {
	Entry  ReferenceEntry
	Status ReferenceStatus
	Child  *shared.RepositoryHandle
}

// State drops the child handle.
func (step WalkStep) State() ReferenceState {
	return ReferenceState{Entry: step.Entry, Status: step.Status}
}

// SyncResult reports the url reconciliation of one reference.
type SyncResult struct {
	Path               string
	PreviousURL        string
	URL                string
	Changed            bool
	ChildRemoteUpdated bool
}

// RemovalResult reports the outcome of a removal.
type RemovalResult struct {
	Path string

	// Removed is false when nothing was registered or staged at the path.
	Removed bool

	// FilesystemCleanupPending is set when the surfaces were torn down but the checkout could not be deleted.
	FilesystemCleanupPending bool

	// LocalConfigurationOnly marks a prune of a local section that no metadata section referred to.
	LocalConfigurationOnly bool
}

// InitResult reports the initialization of one reference.
type InitResult struct {
	Path     string
	LocalURL string
	Changed  bool
}

// CheckoutResult reports the commit a child was moved to.
type CheckoutResult struct {
	Path           string
	PreviousCommit string
	Commit         string
}

// DeriveStatus computes the status of a reference.
// ancestorOf reports whether the committed commit is reachable from the working commit.
func DeriveStatus(entry ReferenceEntry, checkoutPresent bool, ancestorOf func() bool) ReferenceStatus {
	switch {
	case !entry.Initialized:
		return StatusUninitialized
	case !checkoutPresent || len(entry.WorkingCommit) == 0:
		return StatusMissing
	case len(entry.CommittedCommit) > 0 && entry.CommittedCommit == entry.WorkingCommit:
		return StatusInitialized
	case len(entry.CommittedCommit) > 0 && ancestorOf != nil && ancestorOf():
		return StatusDirtyAhead
	default:
		return StatusDirtyBehind
	}
}
