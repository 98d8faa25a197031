package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	failureSuffixTemplateConstant           = " (exit code %d%s)"
	executionFailureSuffixTemplateConstant  = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	fetchAllRemotesLabelConstant            = "all remotes"
	referenceJoinSeparatorConstant          = ", "
	flagPrefixConstant                      = "-"
	endOfOptionsMarkerConstant              = "--"
)

const (
	gitCloneSubcommandNameConstant       = "clone"
	gitFetchSubcommandNameConstant       = "fetch"
	gitPullSubcommandNameConstant        = "pull"
	gitCheckoutSubcommandNameConstant    = "checkout"
	gitResetSubcommandNameConstant       = "reset"
	gitAddSubcommandNameConstant         = "add"
	gitRemoveSubcommandNameConstant      = "rm"
	gitUpdateIndexSubcommandNameConstant = "update-index"
	gitCommitSubcommandNameConstant      = "commit"
	gitConfigSubcommandNameConstant      = "config"
	gitListFilesSubcommandNameConstant   = "ls-files"
	gitListTreeSubcommandNameConstant    = "ls-tree"
	gitRevParseSubcommandNameConstant    = "rev-parse"
	gitStatusSubcommandNameConstant      = "status"
	gitMergeBaseSubcommandNameConstant   = "merge-base"
	gitRemoteSubcommandNameConstant      = "remote"
	gitCatFileSubcommandNameConstant     = "cat-file"
	gitInitSubcommandNameConstant        = "init"
	gitMessageFlagConstant               = "-m"
	gitCacheInfoFlagConstant             = "--cacheinfo"
	gitForceRemoveFlagConstant           = "--force-remove"
	gitConfigFileFlagConstant            = "--file"
	gitConfigBlobFlagConstant            = "--blob"
	gitConfigRemoveSectionFlagConstant   = "--remove-section"
	gitConfigGetRegexpFlagConstant       = "--get-regexp"
	gitRemoteGetURLSubcommandConstant    = "get-url"
	gitRemoteSetURLSubcommandConstant    = "set-url"
)

// gitMessageTemplates holds the four lifecycle templates of one git subcommand.
// Each template receives the subject first and the working directory second.
type gitMessageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

type gitSubjectResolver func(formatter CommandMessageFormatter, arguments []string) string

type gitMessageDescriptor struct {
	templates      gitMessageTemplates
	resolveSubject gitSubjectResolver
}

var gitMessageDescriptors = map[string]gitMessageDescriptor{
	gitCloneSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Cloning %s in %s",
			success:          "Cloned %s in %s",
			failure:          "Failed to clone %s in %s",
			executionFailure: "Unable to clone %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeCloneSubject,
	},
	gitFetchSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Fetching %s in %s",
			success:          "Fetched %s in %s",
			failure:          "Failed to fetch %s in %s",
			executionFailure: "Unable to fetch %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeRemoteSubject,
	},
	gitPullSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Pulling %s in %s",
			success:          "Pulled %s in %s",
			failure:          "Failed to pull %s in %s",
			executionFailure: "Unable to pull %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeRemoteSubject,
	},
	gitCheckoutSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Checking out %s in %s",
			success:          "Checked out %s in %s",
			failure:          "Failed to check out %s in %s",
			executionFailure: "Unable to check out %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeLastOperand,
	},
	gitResetSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Resetting to %s in %s",
			success:          "Reset to %s in %s",
			failure:          "Failed to reset to %s in %s",
			executionFailure: "Unable to reset to %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeLastOperand,
	},
	gitAddSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Staging %s in %s",
			success:          "Staged %s in %s",
			failure:          "Failed to stage %s in %s",
			executionFailure: "Unable to stage %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describePathOperands,
	},
	gitRemoveSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Unstaging %s in %s",
			success:          "Unstaged %s in %s",
			failure:          "Failed to unstage %s in %s",
			executionFailure: "Unable to unstage %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describePathOperands,
	},
	gitUpdateIndexSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Updating index entry %s in %s",
			success:          "Updated index entry %s in %s",
			failure:          "Failed to update index entry %s in %s",
			executionFailure: "Unable to update index entry %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeIndexSubject,
	},
	gitCommitSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Creating commit %q in %s",
			success:          "Created commit %q in %s",
			failure:          "Failed to create commit %q in %s",
			executionFailure: "Unable to create commit %q in %s",
		},
		resolveSubject: CommandMessageFormatter.describeCommitSubject,
	},
	gitConfigSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Editing configuration %s in %s",
			success:          "Edited configuration %s in %s",
			failure:          "Failed to edit configuration %s in %s",
			executionFailure: "Unable to edit configuration %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeConfigSubject,
	},
	gitListFilesSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Listing %s in %s",
			success:          "Listed %s in %s",
			failure:          "Failed to list %s in %s",
			executionFailure: "Unable to list %s in %s",
		},
		resolveSubject: func(CommandMessageFormatter, []string) string { return "index entries" },
	},
	gitListTreeSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Listing tree %s in %s",
			success:          "Listed tree %s in %s",
			failure:          "Failed to list tree %s in %s",
			executionFailure: "Unable to list tree %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeLastOperand,
	},
	gitRevParseSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Resolving %s in %s",
			success:          "Resolved %s in %s",
			failure:          "Failed to resolve %s in %s",
			executionFailure: "Unable to resolve %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeAllArguments,
	},
	gitStatusSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Reviewing %s in %s",
			success:          "Reviewed %s in %s",
			failure:          "Failed to review %s in %s",
			executionFailure: "Unable to review %s in %s",
		},
		resolveSubject: func(CommandMessageFormatter, []string) string { return "working tree status" },
	},
	gitMergeBaseSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Comparing ancestry of %s in %s",
			success:          "Compared ancestry of %s in %s",
			failure:          "Ancestry check of %s in %s returned false",
			executionFailure: "Unable to compare ancestry of %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describePathOperands,
	},
	gitRemoteSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Accessing remote %s in %s",
			success:          "Accessed remote %s in %s",
			failure:          "Failed to access remote %s in %s",
			executionFailure: "Unable to access remote %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeRemoteCommandSubject,
	},
	gitCatFileSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Inspecting object %s in %s",
			success:          "Inspected object %s in %s",
			failure:          "Object %s is not available in %s",
			executionFailure: "Unable to inspect object %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeLastOperand,
	},
	gitInitSubcommandNameConstant: {
		templates: gitMessageTemplates{
			start:            "Initializing repository %s in %s",
			success:          "Initialized repository %s in %s",
			failure:          "Failed to initialize repository %s in %s",
			executionFailure: "Unable to initialize repository %s in %s",
		},
		resolveSubject: CommandMessageFormatter.describeLastOperand,
	},
}

// CommandMessageFormatter renders human readable descriptions of shell commands.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage describes a command that exited with code zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage describes a command that could not be launched.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	descriptor, known := gitMessageDescriptors[strings.TrimSpace(command.Details.Arguments[0])]
	if !known {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subject := formatter.ensureValue(descriptor.resolveSubject(formatter, command.Details.Arguments[1:]))
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(descriptor.templates.start, subject, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(descriptor.templates.success, subject, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(descriptor.templates.failure, subject, workingDirectory) +
			fmt.Sprintf(failureSuffixTemplateConstant, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(descriptor.templates.executionFailure, subject, workingDirectory) +
			fmt.Sprintf(executionFailureSuffixTemplateConstant, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeCloneSubject(arguments []string) string {
	operands := nonFlagArguments(arguments)
	switch len(operands) {
	case 0:
		return emptyStringConstant
	case 1:
		return operands[0]
	default:
		return fmt.Sprintf("%s into %s", operands[len(operands)-2], operands[len(operands)-1])
	}
}

func (formatter CommandMessageFormatter) describeRemoteSubject(arguments []string) string {
	operands := nonFlagArguments(arguments)
	if len(operands) == 0 {
		return fmt.Sprintf("from %s", fetchAllRemotesLabelConstant)
	}
	if len(operands) == 1 {
		return fmt.Sprintf("from %s", operands[0])
	}
	return fmt.Sprintf("%s from %s", strings.Join(operands[1:], referenceJoinSeparatorConstant), operands[0])
}

func (formatter CommandMessageFormatter) describeLastOperand(arguments []string) string {
	operands := nonFlagArguments(arguments)
	if len(operands) == 0 {
		return emptyStringConstant
	}
	return operands[len(operands)-1]
}

func (formatter CommandMessageFormatter) describePathOperands(arguments []string) string {
	return strings.Join(nonFlagArguments(arguments), referenceJoinSeparatorConstant)
}

func (formatter CommandMessageFormatter) describeAllArguments(arguments []string) string {
	return strings.Join(arguments, commandArgumentsJoinSeparatorConstant)
}

func (formatter CommandMessageFormatter) describeIndexSubject(arguments []string) string {
	if cacheInfo := findFlagValue(arguments, gitCacheInfoFlagConstant); len(cacheInfo) > 0 {
		cacheInfoParts := strings.Split(cacheInfo, ",")
		return cacheInfoParts[len(cacheInfoParts)-1]
	}
	if containsArgument(arguments, gitForceRemoveFlagConstant) {
		return formatter.describeLastOperand(arguments)
	}
	return formatter.describePathOperands(arguments)
}

func (formatter CommandMessageFormatter) describeCommitSubject(arguments []string) string {
	return findFlagValue(arguments, gitMessageFlagConstant)
}

func (formatter CommandMessageFormatter) describeConfigSubject(arguments []string) string {
	target := findFlagValue(arguments, gitConfigFileFlagConstant)
	if len(target) == 0 {
		target = findFlagValue(arguments, gitConfigBlobFlagConstant)
	}
	if section := findFlagValue(arguments, gitConfigRemoveSectionFlagConstant); len(section) > 0 {
		return fmt.Sprintf("%s (remove %s)", formatter.ensureValue(target), section)
	}
	if pattern := findFlagValue(arguments, gitConfigGetRegexpFlagConstant); len(pattern) > 0 {
		return fmt.Sprintf("%s (read %s)", formatter.ensureValue(target), pattern)
	}
	return formatter.ensureValue(target)
}

func (formatter CommandMessageFormatter) describeRemoteCommandSubject(arguments []string) string {
	operands := nonFlagArguments(arguments)
	if len(operands) < 2 {
		return strings.Join(operands, commandArgumentsJoinSeparatorConstant)
	}
	switch operands[0] {
	case gitRemoteGetURLSubcommandConstant:
		return fmt.Sprintf("%s url", operands[1])
	case gitRemoteSetURLSubcommandConstant:
		if len(operands) > 2 {
			return fmt.Sprintf("%s url to %s", operands[1], operands[2])
		}
	}
	return strings.Join(operands, commandArgumentsJoinSeparatorConstant)
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

// nonFlagArguments drops flags and the values of flags known to take one.
func nonFlagArguments(arguments []string) []string {
	operands := make([]string, 0, len(arguments))
	skipNext := false
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if skipNext {
			skipNext = false
			continue
		}
		if len(trimmed) == 0 || trimmed == endOfOptionsMarkerConstant {
			continue
		}
		if strings.HasPrefix(trimmed, flagPrefixConstant) {
			skipNext = flagTakesValue(trimmed)
			continue
		}
		operands = append(operands, trimmed)
	}
	return operands
}

func flagTakesValue(flag string) bool {
	switch flag {
	case gitMessageFlagConstant, gitCacheInfoFlagConstant, gitConfigFileFlagConstant, gitConfigBlobFlagConstant,
		gitConfigRemoveSectionFlagConstant, "-b", "--branch", "--origin", "-c":
		return true
	default:
		return false
	}
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
