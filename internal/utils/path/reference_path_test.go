package pathutils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	pathutils "github.com/temirov/subrepo/internal/utils/path"
)

func TestNormalizeReferencePath(testInstance *testing.T) {
	testCases := []struct {
		name          string
		candidate     string
		expectedPath  string
		expectedError error
	}{
		{name: "nested_path", candidate: "modules/child", expectedPath: "modules/child"},
		{name: "surrounding_whitespace_and_dot_segments", candidate: "  ./modules//child/ ", expectedPath: "modules/child"},
		{name: "backslash_separators", candidate: `modules\child`, expectedPath: "modules/child"},
		{name: "inner_parent_segment_stays_inside", candidate: "modules/other/../child", expectedPath: "modules/child"},
		{name: "empty", candidate: "   ", expectedError: pathutils.ErrEmptyReferencePath},
		{name: "absolute", candidate: "/etc/child", expectedError: pathutils.ErrAbsoluteReferencePath},
		{name: "escaping", candidate: "modules/../../child", expectedError: pathutils.ErrEscapingReferencePath},
		{name: "parent_directory", candidate: "..", expectedError: pathutils.ErrEscapingReferencePath},
		{name: "root_itself", candidate: "modules/..", expectedError: pathutils.ErrReservedReferencePath},
		{name: "git_directory", candidate: ".git/modules/child", expectedError: pathutils.ErrReservedReferencePath},
		{name: "nested_git_directory_case_insensitive", candidate: "modules/.GIT", expectedError: pathutils.ErrReservedReferencePath},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			normalizedPath, normalizationError := pathutils.NormalizeReferencePath(testCase.candidate)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, normalizationError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, normalizationError)
			require.Equal(testInstance, testCase.expectedPath, normalizedPath)
		})
	}
}

func TestNormalizeReferencePathProperties(testInstance *testing.T) {
	rapid.Check(testInstance, func(propertyTest *rapid.T) {
		components := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "modules", ".", "..", "", "x y"}), 1, 8).Draw(propertyTest, "components")
		candidate := strings.Join(components, "/")

		normalizedPath, normalizationError := pathutils.NormalizeReferencePath(candidate)
		if normalizationError != nil {
			return
		}
		if strings.HasPrefix(normalizedPath, "/") || normalizedPath == ".." || strings.HasPrefix(normalizedPath, "../") {
			propertyTest.Fatalf("normalized path %q of %q escapes the root", normalizedPath, candidate)
		}
		renormalizedPath, renormalizationError := pathutils.NormalizeReferencePath(normalizedPath)
		if renormalizationError != nil || renormalizedPath != normalizedPath {
			propertyTest.Fatalf("normalization of %q is not idempotent: %q then %q (%v)", candidate, normalizedPath, renormalizedPath, renormalizationError)
		}
		if !pathutils.IsWithin("/workspace/root", filepath.Join("/workspace/root", filepath.FromSlash(normalizedPath))) {
			propertyTest.Fatalf("joined path of %q leaves the root", normalizedPath)
		}
	})
}

func TestResolveContainedPathRejectsSymbolicLinkEscape(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	outsideDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.Symlink(outsideDirectory, filepath.Join(rootDirectory, "linked")))

	_, resolutionError := pathutils.ResolveContainedPath(rootDirectory, "linked/child")
	require.ErrorIs(testInstance, resolutionError, pathutils.ErrEscapingReferencePath)

	resolvedPath, resolutionError := pathutils.ResolveContainedPath(rootDirectory, "modules/child")
	require.NoError(testInstance, resolutionError)
	require.Equal(testInstance, filepath.Join(rootDirectory, "modules", "child"), resolvedPath)
}

func TestHomeExpanderExpandsTildePrefix(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "/home/tester", nil })

	require.Equal(testInstance, filepath.Join("/home/tester", "projects", "parent"), expander.Expand("~/projects/parent"))
	require.Equal(testInstance, "/home/tester", expander.Expand("~"))
	require.Equal(testInstance, "relative/parent", expander.Expand("relative/parent"))
}
