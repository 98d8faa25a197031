package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/subrepo/cmd/cli"
)

const (
	testConfigurationFileNameConstant          = "config.yaml"
	testConfigurationSearchPathEnvironmentName = "SUBREPO_CONFIG_SEARCH_PATH"
	testOverrideConfigurationContentConstant   = "common:\n  log_level: debug\n  log_format: structured\ntools:\n  submodules:\n    update_concurrency: 8\n    fetch_timeout: 45s\n"
)

type renderedConfiguration struct {
	Common struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"common"`
	Tools struct {
		Submodules struct {
			Repository            string `yaml:"repository"`
			MetadataFile          string `yaml:"metadata_file"`
			FetchTimeout          string `yaml:"fetch_timeout"`
			UpdateConcurrency     int    `yaml:"update_concurrency"`
			CommitMessageTemplate string `yaml:"commit_message_template"`
			RequireClean          bool   `yaml:"require_clean"`
		} `yaml:"submodules"`
	} `yaml:"tools"`
}

func isolateConfigurationSearch(testInstance *testing.T) string {
	testInstance.Helper()
	searchDirectory := testInstance.TempDir()
	testInstance.Setenv(testConfigurationSearchPathEnvironmentName, searchDirectory)
	return searchDirectory
}

func executeApplication(testInstance *testing.T, application *cli.Application, arguments ...string) (string, error) {
	testInstance.Helper()
	outputBuffer := &bytes.Buffer{}
	rootCommand := application.RootCommand()
	rootCommand.SetOut(outputBuffer)
	rootCommand.SetErr(&bytes.Buffer{})
	rootCommand.SetArgs(arguments)
	executionError := rootCommand.Execute()
	return outputBuffer.String(), executionError
}

func TestApplicationRegistersCommands(testInstance *testing.T) {
	isolateConfigurationSearch(testInstance)
	application := cli.NewApplication()

	registeredNames := map[string]bool{}
	for _, command := range application.RootCommand().Commands() {
		registeredNames[command.Name()] = true
	}
	for _, expectedName := range []string{"add", "list", "update", "sync", "remove", "init", "checkout", "prune", "init-config"} {
		require.Truef(testInstance, registeredNames[expectedName], "command %s not registered", expectedName)
	}
}

func TestApplicationLogFlagsListChoices(testInstance *testing.T) {
	isolateConfigurationSearch(testInstance)
	persistentFlags := cli.NewApplication().RootCommand().PersistentFlags()

	require.Equal(testInstance, "`<debug|INFO|warn|error>` Override the configured log level.", persistentFlags.Lookup("log-level").Usage)
	require.Equal(testInstance, "`<structured|CONSOLE>` Override the configured log format.", persistentFlags.Lookup("log-format").Usage)
}

func TestApplicationEmbeddedDefaults(testInstance *testing.T) {
	isolateConfigurationSearch(testInstance)
	application := cli.NewApplication()

	output, executionError := executeApplication(testInstance, application, "init-config", "--output", "-")
	require.NoError(testInstance, executionError)

	var rendered renderedConfiguration
	require.NoError(testInstance, yaml.Unmarshal([]byte(output), &rendered))
	require.Equal(testInstance, "info", rendered.Common.LogLevel)
	require.Equal(testInstance, "console", rendered.Common.LogFormat)
	require.Equal(testInstance, ".", rendered.Tools.Submodules.Repository)
	require.Equal(testInstance, ".gitmodules", rendered.Tools.Submodules.MetadataFile)
	require.Equal(testInstance, "2m", rendered.Tools.Submodules.FetchTimeout)
	require.Equal(testInstance, 4, rendered.Tools.Submodules.UpdateConcurrency)
	require.Equal(testInstance, "%s nested repository %s", rendered.Tools.Submodules.CommitMessageTemplate)
	require.True(testInstance, rendered.Tools.Submodules.RequireClean)

	configuration := application.Configuration()
	require.Equal(testInstance, 2*time.Minute, configuration.Tools.Submodules.FetchTimeout)
}

func TestApplicationConfigurationFileOverridesDefaults(testInstance *testing.T) {
	searchDirectory := isolateConfigurationSearch(testInstance)
	configurationPath := filepath.Join(searchDirectory, testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testOverrideConfigurationContentConstant), 0o644))

	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "discovered_in_search_path", arguments: []string{"init-config", "--output", "-"}},
		{name: "explicit_flag", arguments: []string{"--config", configurationPath, "init-config", "--output", "-"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application := cli.NewApplication()
			output, executionError := executeApplication(testInstance, application, testCase.arguments...)
			require.NoError(testInstance, executionError)
			require.True(testInstance, strings.HasPrefix(output, "# merged from "))
			require.Contains(testInstance, output, testConfigurationFileNameConstant)

			configuration := application.Configuration()
			require.Equal(testInstance, "debug", configuration.Common.LogLevel)
			require.Equal(testInstance, 8, configuration.Tools.Submodules.UpdateConcurrency)
			require.Equal(testInstance, 45*time.Second, configuration.Tools.Submodules.FetchTimeout)
			require.Equal(testInstance, ".gitmodules", configuration.Tools.Submodules.MetadataFile)
		})
	}
}

func TestApplicationLogFlagsOverrideConfiguration(testInstance *testing.T) {
	isolateConfigurationSearch(testInstance)

	testCases := []struct {
		name          string
		arguments     []string
		expectedError string
	}{
		{name: "valid_level", arguments: []string{"--log-level", "error", "init-config", "--output", "-"}},
		{name: "unknown_level", arguments: []string{"--log-level", "verbose", "init-config", "--output", "-"}, expectedError: "unsupported log level"},
		{name: "unknown_format", arguments: []string{"--log-format", "xml", "init-config", "--output", "-"}, expectedError: "unsupported log format"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application := cli.NewApplication()
			_, executionError := executeApplication(testInstance, application, testCase.arguments...)
			if len(testCase.expectedError) > 0 {
				require.ErrorContains(testInstance, executionError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, executionError)
		})
	}
}

func TestInitConfigWritesFileOnce(testInstance *testing.T) {
	isolateConfigurationSearch(testInstance)
	outputPath := filepath.Join(testInstance.TempDir(), "nested", testConfigurationFileNameConstant)

	output, executionError := executeApplication(testInstance, cli.NewApplication(), "init-config", "--output", outputPath)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, outputPath)
	require.FileExists(testInstance, outputPath)

	_, repeatError := executeApplication(testInstance, cli.NewApplication(), "init-config", "--output", outputPath)
	require.ErrorContains(testInstance, repeatError, "already exists")

	_, forcedError := executeApplication(testInstance, cli.NewApplication(), "init-config", "--output", outputPath, "--force")
	require.NoError(testInstance, forcedError)
}

func TestEmbeddedDefaultConfigurationIsCopied(testInstance *testing.T) {
	firstContent, configurationType := cli.EmbeddedDefaultConfiguration()
	require.Equal(testInstance, "yaml", configurationType)
	require.NotEmpty(testInstance, firstContent)

	firstContent[0] = '#'
	secondContent, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, firstContent[0], secondContent[0])
}
