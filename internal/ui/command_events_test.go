package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/subrepo/internal/execshell"
	"github.com/temirov/subrepo/internal/ui"
)

const (
	testBaseDirectoryConstant        = "/work/parent"
	testChildDirectoryConstant       = "/work/parent/modules/a"
	testOutsideDirectoryConstant     = "/elsewhere"
	testStandardErrorConstant        = "\nfatal: repository not found\nhint: check the url\n"
	testExecutionFailureConstant     = "executable file not found"
	testStartedExpectationConstant   = "$ git fetch --quiet origin [modules/a]"
	testFailedExpectationConstant    = "git fetch --quiet origin [modules/a] exited with code 128: fatal: repository not found"
	testExecutionExpectationConstant = "git fetch --quiet origin [modules/a] could not run: executable file not found"
)

func fetchCommand(workingDirectory string) execshell.ShellCommand {
	return execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments:        []string{"fetch", "--quiet", "origin"},
			WorkingDirectory: workingDirectory,
		},
	}
}

func TestCommandEventFormatterLocations(testInstance *testing.T) {
	testCases := []struct {
		name             string
		baseDirectory    string
		workingDirectory string
		expected         string
	}{
		{name: "relative_child", baseDirectory: testBaseDirectoryConstant, workingDirectory: testChildDirectoryConstant, expected: testStartedExpectationConstant},
		{name: "base_itself", baseDirectory: testBaseDirectoryConstant, workingDirectory: testBaseDirectoryConstant, expected: "$ git fetch --quiet origin"},
		{name: "outside_base", baseDirectory: testBaseDirectoryConstant, workingDirectory: testOutsideDirectoryConstant, expected: "$ git fetch --quiet origin [/elsewhere]"},
		{name: "no_base", workingDirectory: testChildDirectoryConstant, expected: "$ git fetch --quiet origin [/work/parent/modules/a]"},
		{name: "no_directory", baseDirectory: testBaseDirectoryConstant, expected: "$ git fetch --quiet origin"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			formatter := ui.CommandEventFormatter{BaseDirectory: testCase.baseDirectory}
			require.Equal(testInstance, testCase.expected, formatter.Started(fetchCommand(testCase.workingDirectory)))
		})
	}
}

func TestConsoleCommandEventLoggerEmitsMessages(testInstance *testing.T) {
	command := fetchCommand(testChildDirectoryConstant)

	testCases := []struct {
		name            string
		invoke          func(logger *ui.ConsoleCommandEventLogger)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name:            "command_started",
			invoke:          func(logger *ui.ConsoleCommandEventLogger) { logger.CommandStarted(command) },
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testStartedExpectationConstant,
		},
		{
			name: "command_completed_success",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 0})
			},
			expectedLevel:   zapcore.DebugLevel,
			expectedMessage: testStartedExpectationConstant,
		},
		{
			name: "command_completed_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 128, StandardError: testStandardErrorConstant})
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testFailedExpectationConstant,
		},
		{
			name: "command_execution_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandExecutionFailed(command, errors.New(testExecutionFailureConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testExecutionExpectationConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			eventLogger := ui.NewConsoleCommandEventLoggerWithFormatter(
				zap.New(observerCore),
				ui.CommandEventFormatter{BaseDirectory: testBaseDirectoryConstant},
			)

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
		})
	}
}

func TestConsoleCommandEventLoggerToleratesNilReceiver(testInstance *testing.T) {
	var eventLogger *ui.ConsoleCommandEventLogger
	require.NotPanics(testInstance, func() {
		eventLogger.CommandStarted(fetchCommand(""))
		eventLogger.CommandCompleted(fetchCommand(""), execshell.ExecutionResult{ExitCode: 1})
		eventLogger.CommandExecutionFailed(fetchCommand(""), nil)
	})
}
