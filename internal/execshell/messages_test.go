package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStartedMessageForFetchIncludesRemoteAndReferences(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments:        []string{"fetch", "--prune", "origin", "feature"},
			WorkingDirectory: "/workspace/repo",
		},
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Fetching feature from origin in /workspace/repo", message)
}

func TestBuildStartedMessageForFetchWithoutRemoteUsesAllRemotesLabel(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments:        []string{"fetch", "--prune"},
			WorkingDirectory: "/workspace/repo",
		},
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Fetching from all remotes in /workspace/repo", message)
}

func TestCommandMessageFormatterDescribesReferenceCommands(testInstance *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		stage           messageStage
		result          ExecutionResult
		failure         error
		expectedMessage string
	}{
		{
			name:            "clone_start",
			arguments:       []string{"clone", "--quiet", "--", "https://example.com/child.git", "/workspace/repo/modules/child"},
			stage:           messageStageStart,
			expectedMessage: "Cloning https://example.com/child.git into /workspace/repo/modules/child in /workspace/repo",
		},
		{
			name:            "gitlink_staging_success",
			arguments:       []string{"update-index", "--add", "--cacheinfo", "160000,0123abcd,modules/child"},
			stage:           messageStageSuccess,
			expectedMessage: "Updated index entry modules/child in /workspace/repo",
		},
		{
			name:            "pull_failure_includes_exit_code",
			arguments:       []string{"pull", "--ff-only", "origin", "main"},
			stage:           messageStageFailure,
			result:          ExecutionResult{ExitCode: 128, StandardError: "fatal: not possible to fast-forward\n"},
			expectedMessage: "Failed to pull main from origin in /workspace/repo (exit code 128: fatal: not possible to fast-forward)",
		},
		{
			name:            "config_section_removal",
			arguments:       []string{"config", "--file", ".gitmodules", "--remove-section", "submodule.modules/child"},
			stage:           messageStageStart,
			expectedMessage: "Editing configuration .gitmodules (remove submodule.modules/child) in /workspace/repo",
		},
		{
			name:            "commit_execution_failure",
			arguments:       []string{"commit", "-m", "Add modules/child"},
			stage:           messageStageExecutionFailure,
			failure:         errors.New("exec: not found"),
			expectedMessage: "Unable to create commit \"Add modules/child\" in /workspace/repo: exec: not found",
		},
		{
			name:            "remote_set_url",
			arguments:       []string{"remote", "set-url", "origin", "https://example.com/moved.git"},
			stage:           messageStageStart,
			expectedMessage: "Accessing remote origin url to https://example.com/moved.git in /workspace/repo",
		},
		{
			name:            "unknown_subcommand_uses_generic_label",
			arguments:       []string{"gc", "--auto"},
			stage:           messageStageSuccess,
			expectedMessage: "Completed git gc --auto (in /workspace/repo)",
		},
	}

	formatter := CommandMessageFormatter{}
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := ShellCommand{
				Name:    CommandGit,
				Details: CommandDetails{Arguments: testCase.arguments, WorkingDirectory: "/workspace/repo"},
			}
			message := formatter.buildMessage(command, testCase.result, testCase.failure, testCase.stage)
			require.Equal(testInstance, testCase.expectedMessage, message)
		})
	}
}

func TestCommandMessageFormatterFallsBackToCurrentDirectoryLabel(testInstance *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{Name: CommandGit, Details: CommandDetails{Arguments: []string{"status", "--porcelain"}}}

	require.Equal(testInstance, "Reviewing working tree status in current directory", formatter.BuildStartedMessage(command))
}
