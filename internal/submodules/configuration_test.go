package submodules_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/submodules"
)

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	defaults := submodules.DefaultCommandConfiguration()

	testCases := []struct {
		name          string
		configuration submodules.CommandConfiguration
		expected      submodules.CommandConfiguration
	}{
		{
			name:          "empty_falls_back",
			configuration: submodules.CommandConfiguration{},
			expected: submodules.CommandConfiguration{
				RepositoryPath:        defaults.RepositoryPath,
				MetadataFile:          defaults.MetadataFile,
				FetchTimeout:          0,
				UpdateConcurrency:     defaults.UpdateConcurrency,
				CommitMessageTemplate: defaults.CommitMessageTemplate,
			},
		},
		{
			name: "values_trimmed_and_kept",
			configuration: submodules.CommandConfiguration{
				RepositoryPath:        "  /srv/parent  ",
				MetadataFile:          " .modules ",
				FetchTimeout:          30 * time.Second,
				UpdateConcurrency:     2,
				CommitMessageTemplate: "%s reference %s",
			},
			expected: submodules.CommandConfiguration{
				RepositoryPath:        "/srv/parent",
				MetadataFile:          ".modules",
				FetchTimeout:          30 * time.Second,
				UpdateConcurrency:     2,
				CommitMessageTemplate: "%s reference %s",
			},
		},
		{
			name: "unusable_values_replaced",
			configuration: submodules.CommandConfiguration{
				RepositoryPath:        ".",
				MetadataFile:          ".gitmodules",
				FetchTimeout:          -time.Second,
				UpdateConcurrency:     -3,
				CommitMessageTemplate: "only %s",
				RequireClean:          true,
			},
			expected: defaults,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.configuration.Sanitize())
		})
	}
}

func TestDefaultConfigurationValuesAreKeyedUnderRoot(testInstance *testing.T) {
	values := submodules.DefaultConfigurationValues("tools.submodules")
	require.Equal(testInstance, map[string]any{
		"tools.submodules.repository":              ".",
		"tools.submodules.metadata_file":           ".gitmodules",
		"tools.submodules.fetch_timeout":           "2m0s",
		"tools.submodules.update_concurrency":      4,
		"tools.submodules.commit_message_template": "%s nested repository %s",
		"tools.submodules.require_clean":           true,
	}, values)
}

func TestManagerOptionsCarryConfiguration(testInstance *testing.T) {
	configuration := submodules.CommandConfiguration{MetadataFile: ".modules", FetchTimeout: time.Minute, UpdateConcurrency: 3, RequireClean: true}
	options := configuration.ManagerOptions()
	require.True(testInstance, options.RequireCleanCheckouts)
	require.Equal(testInstance, ".modules", options.MetadataFileName)
	require.Equal(testInstance, time.Minute, options.FetchTimeout)
	require.Equal(testInstance, 3, options.UpdateConcurrency)
}
