package execshell_test

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/execshell"
)

const shellCommandName execshell.CommandName = "sh"

func requireShell(testInstance *testing.T) {
	testInstance.Helper()
	if _, lookupError := exec.LookPath(string(shellCommandName)); lookupError != nil {
		testInstance.Skip("sh is not available")
	}
}

func TestOSCommandRunnerReportsOutputAndExitCode(testInstance *testing.T) {
	requireShell(testInstance)
	runner := execshell.NewOSCommandRunner()

	testCases := []struct {
		name     string
		details  execshell.CommandDetails
		expected execshell.ExecutionResult
	}{
		{
			name:     "success",
			details:  execshell.CommandDetails{Arguments: []string{"-c", "printf out; printf err >&2"}},
			expected: execshell.ExecutionResult{StandardOutput: "out", StandardError: "err"},
		},
		{
			name:     "non_zero_exit",
			details:  execshell.CommandDetails{Arguments: []string{"-c", "exit 3"}},
			expected: execshell.ExecutionResult{ExitCode: 3},
		},
		{
			name:     "standard_input",
			details:  execshell.CommandDetails{Arguments: []string{"-c", "cat"}, StandardInput: []byte("piped")},
			expected: execshell.ExecutionResult{StandardOutput: "piped"},
		},
		{
			name:     "environment_layers",
			details:  execshell.CommandDetails{Arguments: []string{"-c", `printf "%s/%s" "$GIT_TERMINAL_PROMPT" "$SUBREPO_MARKER"`}, EnvironmentVariables: map[string]string{"SUBREPO_MARKER": "marker"}},
			expected: execshell.ExecutionResult{StandardOutput: "0/marker"},
		},
		{
			name:     "working_directory",
			details:  execshell.CommandDetails{Arguments: []string{"-c", "pwd -P"}, WorkingDirectory: "/"},
			expected: execshell.ExecutionResult{StandardOutput: "/\n"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			result, runError := runner.Run(context.Background(), execshell.ShellCommand{Name: shellCommandName, Details: testCase.details})
			require.NoError(testInstance, runError)
			require.Equal(testInstance, testCase.expected, result)
		})
	}
}

func TestOSCommandRunnerReturnsContextError(testInstance *testing.T) {
	requireShell(testInstance)
	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, runError := execshell.NewOSCommandRunner().Run(cancelledContext, execshell.ShellCommand{
		Name:    shellCommandName,
		Details: execshell.CommandDetails{Arguments: []string{"-c", "sleep 5"}},
	})
	require.ErrorIs(testInstance, runError, context.Canceled)
}
