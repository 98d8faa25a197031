package submodules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/subrepo/internal/repos/dependencies"
	"github.com/temirov/subrepo/internal/repos/shared"
	"github.com/temirov/subrepo/internal/ui"
	"github.com/temirov/subrepo/internal/utils"
	flagutils "github.com/temirov/subrepo/internal/utils/flags"
	pathutils "github.com/temirov/subrepo/internal/utils/path"
)

const (
	addCommandUseConstant              = "add <url> <path>"
	addCommandShortDescriptionConstant = "Clone a repository into the parent and stage it as a nested reference"
	addCommandLongDescriptionConstant  = "add clones <url> into <path>, records the reference in the metadata file and the local configuration, and stages both the metadata file and the pinned commit. Nothing is committed unless --commit is given."

	listCommandUseConstant              = "list"
	listCommandShortDescriptionConstant = "List nested references with their status"

	updateCommandUseConstant              = "update [path ...]"
	updateCommandShortDescriptionConstant = "Pull nested repositories and stage their new pins"
	updateCommandLongDescriptionConstant  = "update fast-forwards each nested repository on its tracked branch and stages the new commit in the parent. Without paths every checked out reference is updated."

	syncCommandUseConstant              = "sync"
	syncCommandShortDescriptionConstant = "Reset local fetch urls to the urls recorded in the metadata file"

	removeCommandUseConstant              = "remove <path>"
	removeCommandShortDescriptionConstant = "Unregister a nested reference and delete its checkout"
	removeCommandLongDescriptionConstant  = "remove deletes the reference from the metadata file and the local configuration, unstages its gitlink and deletes its checkout. An unregistered path is deleted only when it holds a repository of its own; any other unregistered path is reported as not registered. A checkout with uncommitted changes is refused unless --require-clean=false is given."

	initCommandUseConstant              = "init [path ...]"
	initCommandShortDescriptionConstant = "Copy metadata urls into the local configuration"

	checkoutCommandUseConstant              = "checkout [path ...]"
	checkoutCommandShortDescriptionConstant = "Move nested repositories to the commits pinned by the parent"

	pruneCommandUseConstant              = "prune"
	pruneCommandShortDescriptionConstant = "Delete nested checkouts that no reference owns"
	pruneCommandLongDescriptionConstant  = "prune deletes every repository below the parent working tree that is neither registered in the metadata file nor staged as a gitlink, including repositories cloned there by hand and checkouts an interrupted remove leaves behind, and drops local configuration sections that no metadata section refers to. It asks for confirmation unless --yes is given. Use --dry-run to list them without deleting."

	repositoryFlagNameConstant        = "repository"
	repositoryFlagDescriptionConstant = "Parent repository working tree"
	commitFlagNameConstant            = "commit"
	commitFlagDescriptionConstant     = "Commit the staged change in the parent"
	branchFlagNameConstant            = "branch"
	branchFlagDescriptionConstant     = "Branch tracked by the nested repository"
	committedFlagNameConstant         = "committed"
	committedFlagDescriptionConstant  = "List the references recorded at HEAD instead of the staged ones"
	porcelainFlagNameConstant         = "porcelain"
	porcelainFlagDescriptionConstant  = "Print tab separated lines with full commit ids"

	addCommitVerbConstant    = "Add"
	updateCommitVerbConstant = "Update"
	removeCommitVerbConstant = "Remove"

	addedMessageTemplateConstant          = "ADDED: %s (%s)\n"
	updatedMessageTemplateConstant        = "UPDATED: %s (%s)\n"
	syncedMessageTemplateConstant         = "SYNCED: %s -> %s\n"
	removedMessageTemplateConstant        = "REMOVED: %s\n"
	notRegisteredMessageTemplateConstant  = "NOT REGISTERED: %s\n"
	cleanupPendingMessageTemplateConstant = "CLEANUP PENDING: %s\n"
	initializedMessageTemplateConstant    = "INITIALIZED: %s -> %s\n"
	checkedOutMessageTemplateConstant     = "CHECKED OUT: %s (%s)\n"
	committedMessageTemplateConstant      = "COMMITTED: %s\n"
	planPruneMessageTemplateConstant      = "PLAN-PRUNE: %s\n"
	prunedMessageTemplateConstant         = "PRUNED: %s\n"
	staleSectionSuffixConstant            = " (local configuration)"
	pruneDeclinedMessageConstant          = "PRUNE DECLINED\n"
	pruneConfirmationTemplateConstant     = "Prune %d nested entries? [y/N] "
	pathJoinSeparatorConstant             = ", "
)

var repositoryPathHomeExpander = pathutils.NewHomeExpander()

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the nested reference commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggerProvider  LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	GitExecutor                  shared.GitExecutor
	GitRepositoryManager         shared.GitRepositoryManager
	GitConfigStore               shared.GitConfigStore
	FileSystem                   shared.FileSystem
}

// BuildCommands constructs add, list, update, sync, remove, init, checkout and prune.
func (builder *CommandBuilder) BuildCommands() ([]*cobra.Command, error) {
	addCommand := &cobra.Command{
		Use:   addCommandUseConstant,
		Short: addCommandShortDescriptionConstant,
		Long:  addCommandLongDescriptionConstant,
		Args:  cobra.ExactArgs(2),
		RunE:  builder.runAdd,
	}
	addCommand.Flags().String(branchFlagNameConstant, "", branchFlagDescriptionConstant)
	addCommand.Flags().Bool(commitFlagNameConstant, false, commitFlagDescriptionConstant)

	listCommand := &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runList,
	}
	listCommand.Flags().Bool(committedFlagNameConstant, false, committedFlagDescriptionConstant)
	listCommand.Flags().Bool(porcelainFlagNameConstant, false, porcelainFlagDescriptionConstant)

	updateCommand := &cobra.Command{
		Use:   updateCommandUseConstant,
		Short: updateCommandShortDescriptionConstant,
		Long:  updateCommandLongDescriptionConstant,
		RunE:  builder.runUpdate,
	}
	updateCommand.Flags().Bool(commitFlagNameConstant, false, commitFlagDescriptionConstant)

	syncCommand := &cobra.Command{
		Use:   syncCommandUseConstant,
		Short: syncCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runSync,
	}

	removeCommand := &cobra.Command{
		Use:   removeCommandUseConstant,
		Short: removeCommandShortDescriptionConstant,
		Long:  removeCommandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runRemove,
	}
	removeCommand.Flags().Bool(commitFlagNameConstant, false, commitFlagDescriptionConstant)
	flagutils.BindExecutionFlags(removeCommand, executionDefaults(), flagutils.StandardExecutionFlagDefinitions(false, false, true))

	initCommand := &cobra.Command{
		Use:   initCommandUseConstant,
		Short: initCommandShortDescriptionConstant,
		RunE:  builder.runInit,
	}

	checkoutCommand := &cobra.Command{
		Use:   checkoutCommandUseConstant,
		Short: checkoutCommandShortDescriptionConstant,
		RunE:  builder.runCheckout,
	}

	pruneCommand := &cobra.Command{
		Use:   pruneCommandUseConstant,
		Short: pruneCommandShortDescriptionConstant,
		Long:  pruneCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runPrune,
	}
	flagutils.BindExecutionFlags(pruneCommand, executionDefaults(), flagutils.StandardExecutionFlagDefinitions(true, true, true))

	commands := []*cobra.Command{addCommand, listCommand, updateCommand, syncCommand, removeCommand, initCommand, checkoutCommand, pruneCommand}
	for _, command := range commands {
		command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagDescriptionConstant)
	}
	return commands, nil
}

func (builder *CommandBuilder) runAdd(command *cobra.Command, arguments []string) error {
	branch, branchFlagError := command.Flags().GetString(branchFlagNameConstant)
	if branchFlagError != nil {
		return branchFlagError
	}
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	entry, addError := session.manager.Add(commandContext(command), session.parent, arguments[0], arguments[1], AddOptions{Branch: branch})
	if addError != nil {
		return addError
	}
	fmt.Fprintf(session.output, addedMessageTemplateConstant, entry.Path, ui.AbbreviateCommit(entry.WorkingCommit))
	return session.commitIfRequested(command, addCommitVerbConstant, []string{entry.Path})
}

func (builder *CommandBuilder) runList(command *cobra.Command, _ []string) error {
	committedRequested, committedFlagError := command.Flags().GetBool(committedFlagNameConstant)
	if committedFlagError != nil {
		return committedFlagError
	}
	porcelainRequested, porcelainFlagError := command.Flags().GetBool(porcelainFlagNameConstant)
	if porcelainFlagError != nil {
		return porcelainFlagError
	}
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	listReferences := session.manager.List
	if committedRequested {
		listReferences = session.manager.ListCommitted
	}
	states, listError := listReferences(commandContext(command), session.parent)
	if listError != nil {
		return listError
	}

	rows := make([]ui.ReferenceRow, 0, len(states))
	for _, state := range states {
		rows = append(rows, ui.ReferenceRow{
			Path:            state.Entry.Path,
			Status:          string(state.Status),
			CommittedCommit: state.Entry.CommittedCommit,
			WorkingCommit:   state.Entry.WorkingCommit,
			URL:             state.Entry.URL,
		})
	}
	formatter := ui.ReferenceTableFormatter{}
	if porcelainRequested {
		fmt.Fprint(session.output, formatter.RenderPorcelain(rows))
		return nil
	}
	fmt.Fprint(session.output, formatter.RenderTable(rows))
	return nil
}

func (builder *CommandBuilder) runUpdate(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	entries, updateError := session.manager.UpdateAll(commandContext(command), session.parent, arguments)
	if updateError != nil {
		return updateError
	}
	updatedPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		fmt.Fprintf(session.output, updatedMessageTemplateConstant, entry.Path, ui.AbbreviateCommit(entry.WorkingCommit))
		updatedPaths = append(updatedPaths, entry.Path)
	}
	if len(updatedPaths) == 0 {
		return nil
	}
	return session.commitIfRequested(command, updateCommitVerbConstant, updatedPaths)
}

func (builder *CommandBuilder) runSync(command *cobra.Command, _ []string) error {
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	results, syncError := session.manager.Sync(commandContext(command), session.parent)
	for _, result := range results {
		if result.Changed || result.ChildRemoteUpdated {
			fmt.Fprintf(session.output, syncedMessageTemplateConstant, result.Path, result.URL)
		}
	}
	return syncError
}

func (builder *CommandBuilder) runRemove(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	result, removeError := session.manager.Remove(commandContext(command), session.parent, arguments[0])
	if removeError != nil {
		var partialRemoval PartialRemovalError
		if errors.As(removeError, &partialRemoval) {
			fmt.Fprintf(session.output, cleanupPendingMessageTemplateConstant, result.Path)
		}
		return removeError
	}
	if !result.Removed {
		fmt.Fprintf(session.output, notRegisteredMessageTemplateConstant, result.Path)
		return nil
	}
	fmt.Fprintf(session.output, removedMessageTemplateConstant, result.Path)
	return session.commitIfRequested(command, removeCommitVerbConstant, []string{result.Path})
}

func (builder *CommandBuilder) runInit(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	results, initError := session.manager.Init(commandContext(command), session.parent, arguments)
	for _, result := range results {
		if result.Changed {
			fmt.Fprintf(session.output, initializedMessageTemplateConstant, result.Path, result.LocalURL)
		}
	}
	return initError
}

func (builder *CommandBuilder) runCheckout(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}

	results, checkoutError := session.manager.Checkout(commandContext(command), session.parent, arguments)
	for _, result := range results {
		fmt.Fprintf(session.output, checkedOutMessageTemplateConstant, result.Path, ui.AbbreviateCommit(result.Commit))
	}
	return checkoutError
}

func (builder *CommandBuilder) runPrune(command *cobra.Command, _ []string) error {
	session, sessionError := builder.openSession(command)
	if sessionError != nil {
		return sessionError
	}
	executionFlags, _ := flagutils.ResolveExecutionFlags(command)

	executionContext := commandContext(command)
	orphans, orphanError := session.manager.ListOrphans(executionContext, session.parent)
	if orphanError != nil {
		return orphanError
	}
	staleEntries, staleError := session.manager.Registry().ListStaleEntries(executionContext, session.parent)
	if staleError != nil {
		return staleError
	}
	plannedCount := len(orphans) + len(staleEntries)
	if plannedCount == 0 {
		return nil
	}

	if executionFlags.DryRun || !executionFlags.AssumeYes {
		for _, orphan := range orphans {
			fmt.Fprintf(session.output, planPruneMessageTemplateConstant, orphan)
		}
		for _, staleEntry := range staleEntries {
			fmt.Fprintf(session.output, planPruneMessageTemplateConstant, staleEntry.Path+staleSectionSuffixConstant)
		}
	}
	if executionFlags.DryRun {
		return nil
	}
	if !executionFlags.AssumeYes {
		prompter := ui.NewIOConfirmationPrompter(command.InOrStdin(), session.output)
		confirmed, confirmError := prompter.Confirm(fmt.Sprintf(pruneConfirmationTemplateConstant, plannedCount))
		if confirmError != nil {
			return confirmError
		}
		if !confirmed {
			fmt.Fprint(session.output, pruneDeclinedMessageConstant)
			return nil
		}
	}

	results, pruneError := session.manager.Prune(executionContext, session.parent)
	for _, result := range results {
		if !result.Removed || result.FilesystemCleanupPending {
			continue
		}
		prunedPath := result.Path
		if result.LocalConfigurationOnly {
			prunedPath += staleSectionSuffixConstant
		}
		fmt.Fprintf(session.output, prunedMessageTemplateConstant, prunedPath)
	}
	return pruneError
}

// commandSession holds the collaborators resolved for one command invocation.
type commandSession struct {
	manager       *Manager
	parent        shared.RepositoryHandle
	configuration CommandConfiguration
	output        io.Writer
}

func (builder *CommandBuilder) openSession(command *cobra.Command) (commandSession, error) {
	configuration := builder.resolveConfiguration()
	repositoryPath := configuration.RepositoryPath
	if flagValue, flagError := command.Flags().GetString(repositoryFlagNameConstant); flagError == nil && len(strings.TrimSpace(flagValue)) > 0 {
		repositoryPath = strings.TrimSpace(flagValue)
	}
	repositoryPath = repositoryPathHomeExpander.Expand(repositoryPath)
	if executionFlags, available := flagutils.ResolveExecutionFlags(command); available && executionFlags.RequireCleanSet {
		configuration.RequireClean = executionFlags.RequireClean
	}

	logger := builder.resolveLogger()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	var consoleLogger *zap.Logger
	if builder.HumanReadableLoggerProvider != nil {
		consoleLogger = builder.HumanReadableLoggerProvider()
	}

	gitExecutor, executorError := dependencies.ResolveGitExecutor(builder.GitExecutor, logger, humanReadableLogging, consoleLogger)
	if executorError != nil {
		return commandSession{}, executorError
	}
	fileSystem := dependencies.ResolveFileSystem(builder.FileSystem)
	repositoryManager, managerError := dependencies.ResolveGitRepositoryManager(builder.GitRepositoryManager, gitExecutor, fileSystem)
	if managerError != nil {
		return commandSession{}, managerError
	}
	configStore, storeError := dependencies.ResolveGitConfigStore(builder.GitConfigStore, gitExecutor, fileSystem)
	if storeError != nil {
		return commandSession{}, storeError
	}

	manager, creationError := NewManager(Dependencies{
		RepositoryManager: repositoryManager,
		ConfigStore:       configStore,
		FileSystem:        fileSystem,
		Logger:            logger,
	}, configuration.ManagerOptions())
	if creationError != nil {
		return commandSession{}, creationError
	}

	parent, openError := repositoryManager.Open(commandContext(command), repositoryPath)
	if openError != nil {
		return commandSession{}, openError
	}
	return commandSession{
		manager:       manager,
		parent:        parent,
		configuration: configuration,
		output:        utils.NewFlushingWriter(command.OutOrStdout()),
	}, nil
}

func (session commandSession) commitIfRequested(command *cobra.Command, verb string, paths []string) error {
	commitRequested, commitFlagError := command.Flags().GetBool(commitFlagNameConstant)
	if commitFlagError != nil || !commitRequested {
		return commitFlagError
	}
	message := fmt.Sprintf(session.configuration.CommitMessageTemplate, verb, strings.Join(paths, pathJoinSeparatorConstant))
	commitID, commitError := session.manager.Commit(commandContext(command), session.parent, message)
	if commitError != nil {
		return commitError
	}
	fmt.Fprintf(session.output, committedMessageTemplateConstant, ui.AbbreviateCommit(commitID))
	return nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func executionDefaults() flagutils.ExecutionDefaults {
	return flagutils.ExecutionDefaults{RequireClean: DefaultCommandConfiguration().RequireClean}
}

func commandContext(command *cobra.Command) context.Context {
	if command == nil || command.Context() == nil {
		return context.Background()
	}
	return command.Context()
}
