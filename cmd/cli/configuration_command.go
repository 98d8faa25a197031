package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/subrepo/internal/utils"
)

const (
	configurationCommandUseConstant              = "init-config"
	configurationCommandShortDescriptionConstant = "Write the effective configuration to a YAML file"
	configurationCommandLongDescriptionConstant  = "init-config renders the configuration resolved from the embedded defaults, the configuration file and the environment, and writes it to --output. Use --output - to print it instead."
	outputFlagNameConstant                       = "output"
	outputFlagDescriptionConstant                = "Destination file, or - for standard output"
	forceFlagNameConstant                        = "force"
	forceFlagDescriptionConstant                 = "Overwrite an existing destination file"
	defaultOutputPathConstant                    = "config.yaml"
	standardOutputPathConstant                   = "-"
	configurationFilePermissionsConstant         = 0o644
	configurationDirectoryPermissionsConstant    = 0o755
	configurationWrittenMessageTemplateConstant  = "WROTE: %s\n"
	configurationExistsErrorTemplateConstant     = "%s already exists; use --force to overwrite it"
	configurationRenderErrorTemplateConstant     = "unable to render configuration: %w"
	configurationWriteErrorTemplateConstant      = "unable to write configuration to %s: %w"
	configurationSourceHeaderTemplateConstant    = "# merged from %s\n"
)

// ConfigurationCommandBuilder assembles the init-config command.
type ConfigurationCommandBuilder struct {
	SettingsProvider func() map[string]any
}

// Build constructs the init-config command.
func (builder *ConfigurationCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   configurationCommandUseConstant,
		Short: configurationCommandShortDescriptionConstant,
		Long:  configurationCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	command.Flags().String(outputFlagNameConstant, defaultOutputPathConstant, outputFlagDescriptionConstant)
	command.Flags().Bool(forceFlagNameConstant, false, forceFlagDescriptionConstant)
	return command, nil
}

func (builder *ConfigurationCommandBuilder) run(command *cobra.Command, _ []string) error {
	outputPath, outputFlagError := command.Flags().GetString(outputFlagNameConstant)
	if outputFlagError != nil {
		return outputFlagError
	}
	forceRequested, forceFlagError := command.Flags().GetBool(forceFlagNameConstant)
	if forceFlagError != nil {
		return forceFlagError
	}

	settings := map[string]any{}
	if builder.SettingsProvider != nil && builder.SettingsProvider() != nil {
		settings = builder.SettingsProvider()
	}
	renderedConfiguration, renderError := yaml.Marshal(settings)
	if renderError != nil {
		return fmt.Errorf(configurationRenderErrorTemplateConstant, renderError)
	}
	if sourcePath, sourceKnown := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context()); sourceKnown && len(sourcePath) > 0 {
		renderedConfiguration = append([]byte(fmt.Sprintf(configurationSourceHeaderTemplateConstant, sourcePath)), renderedConfiguration...)
	}

	trimmedOutputPath := strings.TrimSpace(outputPath)
	if trimmedOutputPath == standardOutputPathConstant {
		_, writeError := command.OutOrStdout().Write(renderedConfiguration)
		return writeError
	}

	if _, statError := os.Stat(trimmedOutputPath); statError == nil && !forceRequested {
		return fmt.Errorf(configurationExistsErrorTemplateConstant, trimmedOutputPath)
	} else if statError != nil && !errors.Is(statError, fs.ErrNotExist) {
		return fmt.Errorf(configurationWriteErrorTemplateConstant, trimmedOutputPath, statError)
	}
	if mkdirError := os.MkdirAll(filepath.Dir(trimmedOutputPath), configurationDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(configurationWriteErrorTemplateConstant, trimmedOutputPath, mkdirError)
	}
	if writeError := os.WriteFile(trimmedOutputPath, renderedConfiguration, configurationFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(configurationWriteErrorTemplateConstant, trimmedOutputPath, writeError)
	}
	fmt.Fprintf(command.OutOrStdout(), configurationWrittenMessageTemplateConstant, trimmedOutputPath)
	return nil
}
