package submodules_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/repos/testsupport"
	"github.com/temirov/subrepo/internal/submodules"
)

type commandFixture struct {
	parentPath  string
	remotePath  string
	firstCommit string
	builder     submodules.CommandBuilder
}

func newCommandFixture(testInstance *testing.T) commandFixture {
	testInstance.Helper()
	testsupport.RequireGit(testInstance)

	rootPath := testInstance.TempDir()
	remotePath := testsupport.InitRepository(testInstance, filepath.Join(rootPath, "remotes", "child"))
	firstCommit := testsupport.CommitFile(testInstance, remotePath, childFileNameConstant, "one\n", "first")
	parentPath := testsupport.InitRepository(testInstance, filepath.Join(rootPath, "parent"))
	testsupport.CommitFile(testInstance, parentPath, parentReadmeConstant, "parent\n", "initial")

	builder := submodules.CommandBuilder{
		GitExecutor: testsupport.NewGitExecutor(testInstance),
		ConfigurationProvider: func() submodules.CommandConfiguration {
			configuration := submodules.DefaultCommandConfiguration()
			configuration.RepositoryPath = parentPath
			return configuration
		},
	}
	return commandFixture{parentPath: parentPath, remotePath: remotePath, firstCommit: firstCommit, builder: builder}
}

func (fixture commandFixture) run(testInstance *testing.T, name string, arguments ...string) (string, error) {
	testInstance.Helper()
	return fixture.runWithInput(testInstance, "", name, arguments...)
}

// runWithInput builds fresh commands for every invocation so flag values never leak between runs.
func (fixture commandFixture) runWithInput(testInstance *testing.T, input string, name string, arguments ...string) (string, error) {
	testInstance.Helper()
	commands, buildError := fixture.builder.BuildCommands()
	require.NoError(testInstance, buildError)
	var command *cobra.Command
	for _, candidate := range commands {
		if candidate.Name() == name {
			command = candidate
		}
	}
	require.NotNilf(testInstance, command, "command %s not built", name)
	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})
	command.SetIn(strings.NewReader(input))
	if arguments == nil {
		arguments = []string{}
	}
	command.SetArgs(arguments)
	executionError := command.Execute()
	return outputBuffer.String(), executionError
}

func TestBuildCommandsProvidesEveryOperation(testInstance *testing.T) {
	builder := submodules.CommandBuilder{}
	commands, buildError := builder.BuildCommands()
	require.NoError(testInstance, buildError)

	names := []string{}
	for _, command := range commands {
		names = append(names, command.Name())
		require.NotNil(testInstance, command.Flags().Lookup("repository"))
	}
	require.Equal(testInstance, []string{"add", "list", "update", "sync", "remove", "init", "checkout", "prune"}, names)
}

func TestCommandsManageReferenceLifecycle(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)
	abbreviatedCommit := fixture.firstCommit[:12]

	addOutput, addError := fixture.run(testInstance, "add", "--commit", fixture.remotePath, childPathConstant)
	require.NoError(testInstance, addError)
	require.Contains(testInstance, addOutput, fmt.Sprintf("ADDED: lib (%s)", abbreviatedCommit))
	require.Contains(testInstance, addOutput, "COMMITTED: ")
	require.Equal(testInstance, "Add nested repository lib", testsupport.RunGit(testInstance, fixture.parentPath, "log", "-1", "--format=%s"))

	porcelainOutput, porcelainError := fixture.run(testInstance, "list", "--committed", "--porcelain")
	require.NoError(testInstance, porcelainError)
	require.Equal(testInstance, fmt.Sprintf("initialized\tlib\t%s\t%s\t%s\n", fixture.firstCommit, fixture.firstCommit, fixture.remotePath), porcelainOutput)

	tableOutput, tableError := fixture.run(testInstance, "list")
	require.NoError(testInstance, tableError)
	require.Contains(testInstance, tableOutput, "PATH")
	require.Contains(testInstance, tableOutput, abbreviatedCommit)

	syncOutput, syncError := fixture.run(testInstance, "sync")
	require.NoError(testInstance, syncError)
	require.Empty(testInstance, syncOutput)

	removeOutput, removeError := fixture.run(testInstance, "remove", "--commit", childPathConstant)
	require.NoError(testInstance, removeError)
	require.Contains(testInstance, removeOutput, "REMOVED: lib")
	require.Equal(testInstance, "Remove nested repository lib", testsupport.RunGit(testInstance, fixture.parentPath, "log", "-1", "--format=%s"))

	emptyOutput, emptyError := fixture.run(testInstance, "list")
	require.NoError(testInstance, emptyError)
	require.Equal(testInstance, "no nested repositories\n", emptyOutput)

	repeatedOutput, repeatedError := fixture.run(testInstance, "remove", childPathConstant)
	require.NoError(testInstance, repeatedError)
	require.Equal(testInstance, "NOT REGISTERED: lib\n", repeatedOutput)
}

func TestCommandsUpdateAndCheckout(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)
	_, addError := fixture.run(testInstance, "add", "--commit", fixture.remotePath, childPathConstant)
	require.NoError(testInstance, addError)
	secondCommit := testsupport.CommitFile(testInstance, fixture.remotePath, childFileNameConstant, "two\n", "second")

	updateOutput, updateError := fixture.run(testInstance, "update", "--commit")
	require.NoError(testInstance, updateError)
	require.Contains(testInstance, updateOutput, fmt.Sprintf("UPDATED: lib (%s)", secondCommit[:12]))
	require.Equal(testInstance, "Update nested repository lib", testsupport.RunGit(testInstance, fixture.parentPath, "log", "-1", "--format=%s"))

	testsupport.RunGit(testInstance, filepath.Join(fixture.parentPath, childPathConstant), "checkout", "--quiet", fixture.firstCommit)
	checkoutOutput, checkoutError := fixture.run(testInstance, "checkout", childPathConstant)
	require.NoError(testInstance, checkoutError)
	require.Equal(testInstance, fmt.Sprintf("CHECKED OUT: lib (%s)\n", secondCommit[:12]), checkoutOutput)
	require.Equal(testInstance, secondCommit, testsupport.RunGit(testInstance, filepath.Join(fixture.parentPath, childPathConstant), "rev-parse", "HEAD"))
}

func TestCommandsRejectInvalidInvocations(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)

	testCases := []struct {
		name      string
		command   string
		arguments []string
	}{
		{name: "add_missing_path", command: "add", arguments: []string{fixture.remotePath}},
		{name: "remove_without_path", command: "remove", arguments: []string{}},
		{name: "list_with_argument", command: "list", arguments: []string{"extra"}},
		{name: "update_unknown_path", command: "update", arguments: []string{"unknown"}},
		{name: "parent_not_a_repository", command: "list", arguments: []string{"--repository", testInstance.TempDir()}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, executionError := fixture.run(testInstance, testCase.command, testCase.arguments...)
			require.Error(testInstance, executionError)
		})
	}
}

func TestCommandsPruneOrphanedCheckouts(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)
	_, addError := fixture.run(testInstance, "add", "--commit", fixture.remotePath, childPathConstant)
	require.NoError(testInstance, addError)
	testsupport.RunGit(testInstance, fixture.parentPath, "clone", "--quiet", fixture.remotePath, "stray")

	planOutput, planError := fixture.run(testInstance, "prune", "--dry-run")
	require.NoError(testInstance, planError)
	require.Equal(testInstance, "PLAN-PRUNE: stray\n", planOutput)
	require.DirExists(testInstance, filepath.Join(fixture.parentPath, "stray"))

	declinedOutput, declinedError := fixture.runWithInput(testInstance, "n\n", "prune")
	require.NoError(testInstance, declinedError)
	require.Equal(testInstance, "PLAN-PRUNE: stray\nPrune 1 nested entries? [y/N] PRUNE DECLINED\n", declinedOutput)
	require.DirExists(testInstance, filepath.Join(fixture.parentPath, "stray"))

	pruneOutput, pruneError := fixture.run(testInstance, "prune", "--yes")
	require.NoError(testInstance, pruneError)
	require.Equal(testInstance, "PRUNED: stray\n", pruneOutput)
	require.NoDirExists(testInstance, filepath.Join(fixture.parentPath, "stray"))
	require.DirExists(testInstance, filepath.Join(fixture.parentPath, childPathConstant))

	repeatedOutput, repeatedError := fixture.run(testInstance, "prune")
	require.NoError(testInstance, repeatedError)
	require.Empty(testInstance, repeatedOutput)
}

func TestCommandsPruneConfirmsStaleLocalSections(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)
	testsupport.RunGit(testInstance, fixture.parentPath, "config", "submodule.ghost.url", fixture.remotePath)

	planOutput, planError := fixture.run(testInstance, "prune", "--dry-run")
	require.NoError(testInstance, planError)
	require.Equal(testInstance, "PLAN-PRUNE: ghost (local configuration)\n", planOutput)

	pruneOutput, pruneError := fixture.runWithInput(testInstance, "yes\n", "prune")
	require.NoError(testInstance, pruneError)
	require.Equal(testInstance, "PLAN-PRUNE: ghost (local configuration)\nPrune 1 nested entries? [y/N] PRUNED: ghost (local configuration)\n", pruneOutput)
	require.NotContains(testInstance, testsupport.RunGit(testInstance, fixture.parentPath, "config", "--list"), "submodule.ghost")
}

func TestCommandsRemoveHonorsRequireClean(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance)
	_, addError := fixture.run(testInstance, "add", "--commit", fixture.remotePath, childPathConstant)
	require.NoError(testInstance, addError)
	scratchPath := filepath.Join(fixture.parentPath, childPathConstant, "scratch.txt")
	require.NoError(testInstance, os.WriteFile(scratchPath, []byte("draft\n"), 0o644))

	_, refusedError := fixture.run(testInstance, "remove", childPathConstant)
	require.ErrorIs(testInstance, refusedError, submodules.ErrCheckoutHasChanges)
	require.FileExists(testInstance, scratchPath)

	removeOutput, removeError := fixture.run(testInstance, "remove", "--require-clean=false", childPathConstant)
	require.NoError(testInstance, removeError)
	require.Equal(testInstance, "REMOVED: lib\n", removeOutput)
	require.NoDirExists(testInstance, filepath.Join(fixture.parentPath, childPathConstant))
}
