package testsupport

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/temirov/subrepo/internal/execshell"
)

const (
	gitExecutableNameConstant           = "git"
	defaultBranchNameConstant           = "main"
	fixtureAuthorNameConstant           = "Fixture Author"
	fixtureAuthorEmailConstant          = "fixture@example.com"
	fixtureFilePermissionsConstant      = 0o644
	fixtureDirectoryPermissionsConstant = 0o755
	globalConfigFileNameConstant        = "gitconfig"
	gitMissingSkipMessageConstant       = "git executable not available"
)

// RequireGit skips the test when git is not installed and isolates git from the user's configuration.
func RequireGit(testInstance *testing.T) {
	testInstance.Helper()
	if _, lookupError := exec.LookPath(gitExecutableNameConstant); lookupError != nil {
		testInstance.Skip(gitMissingSkipMessageConstant)
	}

	homeDirectory := testInstance.TempDir()
	globalConfigPath := filepath.Join(homeDirectory, globalConfigFileNameConstant)
	if writeError := os.WriteFile(globalConfigPath, nil, fixtureFilePermissionsConstant); writeError != nil {
		testInstance.Fatalf("write global config: %v", writeError)
	}
	testInstance.Setenv("HOME", homeDirectory)
	testInstance.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	testInstance.Setenv("GIT_CONFIG_GLOBAL", globalConfigPath)
	testInstance.Setenv("GIT_AUTHOR_NAME", fixtureAuthorNameConstant)
	testInstance.Setenv("GIT_AUTHOR_EMAIL", fixtureAuthorEmailConstant)
	testInstance.Setenv("GIT_COMMITTER_NAME", fixtureAuthorNameConstant)
	testInstance.Setenv("GIT_COMMITTER_EMAIL", fixtureAuthorEmailConstant)
}

// NewGitExecutor returns a quiet executor that runs the real git binary.
func NewGitExecutor(testInstance *testing.T) *execshell.ShellExecutor {
	testInstance.Helper()
	executor, creationError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner())
	if creationError != nil {
		testInstance.Fatalf("create executor: %v", creationError)
	}
	return executor
}

// RunGit runs git in directory and returns its trimmed standard output.
func RunGit(testInstance *testing.T, directory string, arguments ...string) string {
	testInstance.Helper()
	command := exec.Command(gitExecutableNameConstant, arguments...)
	command.Dir = directory
	output, runError := command.CombinedOutput()
	if runError != nil {
		testInstance.Fatalf("git %s: %v\n%s", strings.Join(arguments, " "), runError, output)
	}
	return strings.TrimSpace(string(output))
}

// InitRepository creates a repository on the main branch at directory.
func InitRepository(testInstance *testing.T, directory string) string {
	testInstance.Helper()
	if mkdirError := os.MkdirAll(directory, fixtureDirectoryPermissionsConstant); mkdirError != nil {
		testInstance.Fatalf("create %s: %v", directory, mkdirError)
	}
	RunGit(testInstance, directory, "init", "--quiet")
	RunGit(testInstance, directory, "symbolic-ref", "HEAD", "refs/heads/"+defaultBranchNameConstant)
	return directory
}

// CommitFile writes content to relativePath, commits it and returns the new commit id.
func CommitFile(testInstance *testing.T, directory string, relativePath string, content string, message string) string {
	testInstance.Helper()
	filePath := filepath.Join(directory, filepath.FromSlash(relativePath))
	if mkdirError := os.MkdirAll(filepath.Dir(filePath), fixtureDirectoryPermissionsConstant); mkdirError != nil {
		testInstance.Fatalf("create %s: %v", filepath.Dir(filePath), mkdirError)
	}
	if writeError := os.WriteFile(filePath, []byte(content), fixtureFilePermissionsConstant); writeError != nil {
		testInstance.Fatalf("write %s: %v", filePath, writeError)
	}
	RunGit(testInstance, directory, "add", "--", relativePath)
	RunGit(testInstance, directory, "commit", "--quiet", "-m", message)
	return RunGit(testInstance, directory, "rev-parse", "HEAD")
}

// GitExecutorStub records git invocations and answers them through Handler.
// Without a handler every command succeeds with empty output.
type GitExecutorStub struct {
	Handler func(details execshell.CommandDetails) (execshell.ExecutionResult, error)

	mutex            sync.Mutex
	ExecutedCommands []execshell.CommandDetails
}

// ExecuteGit records the command and delegates to Handler.
func (executor *GitExecutorStub) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	executor.ExecutedCommands = append(executor.ExecutedCommands, details)
	executor.mutex.Unlock()
	if executor.Handler == nil {
		return execshell.ExecutionResult{}, nil
	}
	return executor.Handler(details)
}

// Commands returns the recorded invocations joined into single strings.
func (executor *GitExecutorStub) Commands() []string {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	joined := make([]string, 0, len(executor.ExecutedCommands))
	for _, details := range executor.ExecutedCommands {
		joined = append(joined, strings.Join(details.Arguments, " "))
	}
	return joined
}

// FailingGitExecutor delegates to Delegate and fails the first command accepted by FailWhen.
type FailingGitExecutor struct {
	Delegate interface {
		ExecuteGit(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
	}
	FailWhen func(details execshell.CommandDetails) bool
	Failure  error

	mutex  sync.Mutex
	failed bool
}

// ExecuteGit returns Failure for the first matching command and runs every other command.
func (executor *FailingGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	shouldFail := !executor.failed && executor.FailWhen != nil && executor.FailWhen(details)
	if shouldFail {
		executor.failed = true
	}
	executor.mutex.Unlock()
	if shouldFail {
		return execshell.ExecutionResult{}, executor.Failure
	}
	return executor.Delegate.ExecuteGit(executionContext, details)
}

// Triggered reports whether the failure has been injected.
func (executor *FailingGitExecutor) Triggered() bool {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	return executor.failed
}

// ArgumentsContain reports whether every fragment appears among the command arguments.
func ArgumentsContain(details execshell.CommandDetails, fragments ...string) bool {
	joined := strings.Join(details.Arguments, " ")
	for _, fragment := range fragments {
		if !strings.Contains(joined, fragment) {
			return false
		}
	}
	return true
}
