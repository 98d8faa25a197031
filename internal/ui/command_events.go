package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/subrepo/internal/execshell"
)

const (
	startedPrefixConstant           = "$ "
	failedExitTemplateConstant      = "%s exited with code %d"
	failedExecutionTemplateConstant = "%s could not run: %s"
	standardErrorTemplateConstant   = "%s: %s"
	locationTemplateConstant        = "%s [%s]"
	argumentSeparatorConstant       = " "
	unknownFailureConstant          = "unknown error"
	currentDirectoryConstant        = "."
)

// CommandEventFormatter turns git invocations into single console lines.
// Working directories are shown relative to BaseDirectory when they lie below it.
type CommandEventFormatter struct {
	BaseDirectory string
}

// Started renders the line printed before a command runs.
func (formatter CommandEventFormatter) Started(command execshell.ShellCommand) string {
	return startedPrefixConstant + formatter.label(command)
}

// Failed renders a non-zero exit together with the first line of standard error.
func (formatter CommandEventFormatter) Failed(command execshell.ShellCommand, result execshell.ExecutionResult) string {
	message := fmt.Sprintf(failedExitTemplateConstant, formatter.label(command), result.ExitCode)
	if firstLine := firstNonEmptyLine(result.StandardError); len(firstLine) > 0 {
		return fmt.Sprintf(standardErrorTemplateConstant, message, firstLine)
	}
	return message
}

// ExecutionFailed renders a command that could not be started.
func (formatter CommandEventFormatter) ExecutionFailed(command execshell.ShellCommand, failure error) string {
	reason := unknownFailureConstant
	if failure != nil {
		reason = failure.Error()
	}
	return fmt.Sprintf(failedExecutionTemplateConstant, formatter.label(command), reason)
}

func (formatter CommandEventFormatter) label(command execshell.ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	commandLine := strings.Join(parts, argumentSeparatorConstant)
	location := formatter.location(command.Details.WorkingDirectory)
	if len(location) == 0 {
		return commandLine
	}
	return fmt.Sprintf(locationTemplateConstant, commandLine, location)
}

func (formatter CommandEventFormatter) location(workingDirectory string) string {
	trimmed := strings.TrimSpace(workingDirectory)
	if len(trimmed) == 0 || len(formatter.BaseDirectory) == 0 {
		return trimmed
	}
	relative, relativeError := filepath.Rel(formatter.BaseDirectory, trimmed)
	if relativeError != nil || strings.HasPrefix(relative, "..") {
		return trimmed
	}
	if relative == currentDirectoryConstant {
		return ""
	}
	return filepath.ToSlash(relative)
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}

// ConsoleCommandEventLogger prints git invocations for a terminal user.
// Successful completions are only reported at debug level.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandEventFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	return NewConsoleCommandEventLoggerWithFormatter(logger, CommandEventFormatter{})
}

// NewConsoleCommandEventLoggerWithFormatter constructs a console event logger with a custom formatter.
func NewConsoleCommandEventLoggerWithFormatter(logger *zap.Logger, formatter CommandEventFormatter) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: formatter}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.Started(command))
}

// CommandCompleted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Debug(eventLogger.formatter.Started(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.Failed(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.ExecutionFailed(command, failure))
}
