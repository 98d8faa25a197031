package ui_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/ui"
)

const (
	fullCommitConstant        = "0123456789abcdef0123456789abcdef01234567"
	abbreviatedCommitConstant = "0123456789ab"
)

func TestAbbreviateCommit(testInstance *testing.T) {
	testCases := []struct {
		name     string
		commit   string
		expected string
	}{
		{name: "full", commit: fullCommitConstant, expected: abbreviatedCommitConstant},
		{name: "short", commit: "abc", expected: "abc"},
		{name: "empty", commit: "", expected: "-"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, ui.AbbreviateCommit(testCase.commit))
		})
	}
}

func TestRenderPorcelainKeepsFullCommits(testInstance *testing.T) {
	rows := []ui.ReferenceRow{
		{Path: "lib", Status: "initialized", CommittedCommit: fullCommitConstant, WorkingCommit: fullCommitConstant, URL: "../lib.git"},
		{Path: "vendor/x", Status: "uninitialized", CommittedCommit: fullCommitConstant, URL: "../x.git"},
	}

	rendered := ui.ReferenceTableFormatter{}.RenderPorcelain(rows)
	require.Equal(testInstance,
		"initialized\tlib\t"+fullCommitConstant+"\t"+fullCommitConstant+"\t../lib.git\n"+
			"uninitialized\tvendor/x\t"+fullCommitConstant+"\t-\t../x.git\n",
		rendered)
	require.Empty(testInstance, ui.ReferenceTableFormatter{}.RenderPorcelain(nil))
}

func TestRenderTable(testInstance *testing.T) {
	formatter := ui.ReferenceTableFormatter{}
	require.Equal(testInstance, "no nested repositories\n", formatter.RenderTable(nil))

	rendered := formatter.RenderTable([]ui.ReferenceRow{{Path: "lib", Status: "dirty-ahead", CommittedCommit: fullCommitConstant, URL: "../lib.git"}})
	require.True(testInstance, strings.HasSuffix(rendered, "\n"))
	for _, expected := range []string{"PATH", "STATUS", "CHECKED OUT", "lib", "dirty-ahead", abbreviatedCommitConstant, "../lib.git"} {
		require.Contains(testInstance, rendered, expected)
	}
	require.NotContains(testInstance, rendered, fullCommitConstant)
}
