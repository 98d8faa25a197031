package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/subrepo/internal/execshell"
	"github.com/temirov/subrepo/internal/gitrepo"
	"github.com/temirov/subrepo/internal/repos/filesystem"
	"github.com/temirov/subrepo/internal/repos/shared"
	"github.com/temirov/subrepo/internal/ui"
)

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
// In human-readable mode command events are rendered for the console and diagnostic logging is silenced.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, humanReadable bool, consoleLogger *zap.Logger) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	if humanReadable && consoleLogger != nil {
		return execshell.NewShellExecutorWithObserver(zap.NewNop(), commandRunner, ui.NewConsoleCommandEventLogger(consoleLogger))
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveGitRepositoryManager returns the provided repository manager or constructs one from the executor.
func ResolveGitRepositoryManager(existing shared.GitRepositoryManager, executor shared.GitExecutor, fileSystem shared.FileSystem) (shared.GitRepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}
	return gitrepo.NewRepositoryManagerWithFileSystem(executor, ResolveFileSystem(fileSystem))
}

// ResolveGitConfigStore returns the provided configuration store or constructs one from the executor.
func ResolveGitConfigStore(existing shared.GitConfigStore, executor shared.GitExecutor, fileSystem shared.FileSystem) (shared.GitConfigStore, error) {
	if existing != nil {
		return existing, nil
	}
	return gitrepo.NewConfigStoreWithFileSystem(executor, ResolveFileSystem(fileSystem))
}
