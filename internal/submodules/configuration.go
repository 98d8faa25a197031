package submodules

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultRepositoryPathConstant         = "."
	defaultFetchTimeoutConstant           = 2 * time.Minute
	defaultUpdateConcurrencyConstant      = 4
	defaultRequireCleanConstant           = true
	defaultCommitMessageTemplateConstant  = "%s nested repository %s"
	commitMessagePlaceholderConstant      = "%s"
	commitMessagePlaceholderCountConstant = 2
	configurationKeyTemplateConstant      = "%s.%s"
	repositoryKeyConstant                 = "repository"
	metadataFileKeyConstant               = "metadata_file"
	fetchTimeoutKeyConstant               = "fetch_timeout"
	updateConcurrencyKeyConstant          = "update_concurrency"
	commitMessageTemplateKeyConstant      = "commit_message_template"
	requireCleanKeyConstant               = "require_clean"
)

// CommandConfiguration captures configuration values for the reference commands.
type CommandConfiguration struct {
	RepositoryPath        string        `mapstructure:"repository"`
	MetadataFile          string        `mapstructure:"metadata_file"`
	FetchTimeout          time.Duration `mapstructure:"fetch_timeout"`
	UpdateConcurrency     int           `mapstructure:"update_concurrency"`
	CommitMessageTemplate string        `mapstructure:"commit_message_template"`
	RequireClean          bool          `mapstructure:"require_clean"`
}

// DefaultCommandConfiguration provides baseline configuration values for the reference commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RepositoryPath:        defaultRepositoryPathConstant,
		MetadataFile:          DefaultMetadataFileNameConstant,
		FetchTimeout:          defaultFetchTimeoutConstant,
		UpdateConcurrency:     defaultUpdateConcurrencyConstant,
		CommitMessageTemplate: defaultCommitMessageTemplateConstant,
		RequireClean:          defaultRequireCleanConstant,
	}
}

// DefaultConfigurationValues returns the defaults keyed for the configuration loader under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		fmt.Sprintf(configurationKeyTemplateConstant, rootKey, repositoryKeyConstant):            defaults.RepositoryPath,
		fmt.Sprintf(configurationKeyTemplateConstant, rootKey, metadataFileKeyConstant):          defaults.MetadataFile,
		fmt.Sprintf(configurationKeyTemplateConstant, rootKey, fetchTimeoutKeyConstant):          defaults.FetchTimeout.String(),
		fmt.Sprintf(configurationKeyTemplateConstant, rootKey, updateConcurrencyKeyConstant):     defaults.UpdateConcurrency,
		fmt.Sprintf(configurationKeyTemplateConstant, rootKey, commitMessageTemplateKeyConstant): defaults.CommitMessageTemplate,
		fmt.Sprintf(configurationKeyTemplateConstant, rootKey, requireCleanKeyConstant):          defaults.RequireClean,
	}
}

// Sanitize trims values and falls back to defaults for unusable ones.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.RepositoryPath = strings.TrimSpace(configuration.RepositoryPath)
	if len(sanitized.RepositoryPath) == 0 {
		sanitized.RepositoryPath = defaults.RepositoryPath
	}
	sanitized.MetadataFile = strings.TrimSpace(configuration.MetadataFile)
	if len(sanitized.MetadataFile) == 0 {
		sanitized.MetadataFile = defaults.MetadataFile
	}
	if sanitized.FetchTimeout < 0 {
		sanitized.FetchTimeout = defaults.FetchTimeout
	}
	if sanitized.UpdateConcurrency <= 0 {
		sanitized.UpdateConcurrency = defaults.UpdateConcurrency
	}
	if strings.Count(configuration.CommitMessageTemplate, commitMessagePlaceholderConstant) != commitMessagePlaceholderCountConstant {
		sanitized.CommitMessageTemplate = defaults.CommitMessageTemplate
	}
	return sanitized
}

// ManagerOptions converts the configuration into manager options.
func (configuration CommandConfiguration) ManagerOptions() Options {
	return Options{
		MetadataFileName:      configuration.MetadataFile,
		FetchTimeout:          configuration.FetchTimeout,
		UpdateConcurrency:     configuration.UpdateConcurrency,
		RequireCleanCheckouts: configuration.RequireClean,
	}
}
