package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/utils"
)

const (
	testEnvironmentPrefixConstant       = "TESTSUBREPO"
	testConfigurationNameConstant       = "config"
	testConfigurationTypeConstant       = "yaml"
	testConfigFileNameConstant          = "config.yaml"
	testLogLevelKeyConstant             = "common.log_level"
	testFetchTimeoutKeyConstant         = "tools.submodules.fetch_timeout"
	testDefaultLogLevelConstant         = "info"
	testEmbeddedConfigurationTemplate   = "common:\n  log_level: %s\ntools:\n  submodules:\n    fetch_timeout: %s\n"
	testFileConfigurationTemplate       = "common:\n  log_level: %s\n"
	testEnvironmentLogLevelVariableName = testEnvironmentPrefixConstant + "_COMMON_LOG_LEVEL"
	configurationLoaderSubtestTemplate  = "%d_%s"
)

type configurationFixture struct {
	Common configurationCommonFixture `mapstructure:"common"`
	Tools  configurationToolsFixture  `mapstructure:"tools"`
}

type configurationCommonFixture struct {
	LogLevel string `mapstructure:"log_level"`
}

type configurationToolsFixture struct {
	Submodules configurationSubmodulesFixture `mapstructure:"submodules"`
}

type configurationSubmodulesFixture struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Paths        []string      `mapstructure:"paths"`
}

func TestConfigurationLoaderLayersSources(testInstance *testing.T) {
	testCases := []struct {
		name                string
		fileLogLevel        string
		environmentLogLevel string
		expectedLogLevel    string
	}{
		{
			name:             "embedded_configuration_applies",
			expectedLogLevel: "debug",
		},
		{
			name:             "file_overrides_embedded",
			fileLogLevel:     "warn",
			expectedLogLevel: "warn",
		},
		{
			name:                "environment_overrides_file",
			fileLogLevel:        "warn",
			environmentLogLevel: "error",
			expectedLogLevel:    "error",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestTemplate, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			tempDirectory := testInstance.TempDir()
			configurationFilePath := ""
			if len(testCase.fileLogLevel) > 0 {
				configurationFilePath = filepath.Join(tempDirectory, testConfigFileNameConstant)
				require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(testFileConfigurationTemplate, testCase.fileLogLevel)), 0o600))
			}
			if len(testCase.environmentLogLevel) > 0 {
				testInstance.Setenv(testEnvironmentLogLevelVariableName, testCase.environmentLogLevel)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{tempDirectory})
			configurationLoader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testEmbeddedConfigurationTemplate, "debug", "45s")), testConfigurationTypeConstant)

			loadedConfiguration := configurationFixture{}
			metadata, loadError := configurationLoader.LoadConfiguration(configurationFilePath, map[string]any{testLogLevelKeyConstant: testDefaultLogLevelConstant}, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedLogLevel, loadedConfiguration.Common.LogLevel)
			require.Equal(testInstance, 45*time.Second, loadedConfiguration.Tools.Submodules.FetchTimeout)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderDecodesDurationAndListDefaults(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})

	defaultValues := map[string]any{
		testLogLevelKeyConstant:     testDefaultLogLevelConstant,
		testFetchTimeoutKeyConstant: "2m",
		"tools.submodules.paths":    "modules/a,modules/b",
	}

	loadedConfiguration := configurationFixture{}
	metadata, loadError := configurationLoader.LoadConfiguration("", defaultValues, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 2*time.Minute, loadedConfiguration.Tools.Submodules.FetchTimeout)
	require.Equal(testInstance, []string{"modules/a", "modules/b"}, loadedConfiguration.Tools.Submodules.Paths)
	require.Empty(testInstance, metadata.ConfigFileUsed)
	require.Contains(testInstance, metadata.Settings, "tools")
}

func TestConfigurationLoaderRejectsMalformedFile(testInstance *testing.T) {
	configurationFilePath := filepath.Join(testInstance.TempDir(), testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte("common: [unterminated"), 0o600))

	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)
	_, loadError := configurationLoader.LoadConfiguration(configurationFilePath, nil, &configurationFixture{})
	require.Error(testInstance, loadError)
}
