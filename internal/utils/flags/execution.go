// Package flags binds the execution flags shared by the destructive reference commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Preview operations without making changes"
	// AssumeYesFlagName exposes the shared assume-yes flag name.
	AssumeYesFlagName = "yes"
	// AssumeYesFlagShorthand provides the shorthand for the assume-yes flag.
	AssumeYesFlagShorthand = "y"
	// AssumeYesFlagUsage describes the shared assume-yes flag purpose.
	AssumeYesFlagUsage = "Automatically confirm prompts"
	// RequireCleanFlagName exposes the shared require-clean flag name.
	RequireCleanFlagName = "require-clean"
	// RequireCleanFlagUsage describes the shared require-clean flag purpose.
	RequireCleanFlagUsage = "Refuse to delete nested checkouts with uncommitted changes"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	DryRun       bool
	AssumeYes    bool
	RequireClean bool
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name      string
	Usage     string
	Shorthand string
	Enabled   bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	DryRun       ExecutionFlagDefinition
	AssumeYes    ExecutionFlagDefinition
	RequireClean ExecutionFlagDefinition
}

// ExecutionFlags stores the parsed execution flag values. The Set fields report explicit use on the command line.
type ExecutionFlags struct {
	DryRun          bool
	DryRunSet       bool
	AssumeYes       bool
	AssumeYesSet    bool
	RequireClean    bool
	RequireCleanSet bool
}

// StandardExecutionFlagDefinitions enables the requested flags with their shared names and usage.
func StandardExecutionFlagDefinitions(dryRun bool, assumeYes bool, requireClean bool) ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		DryRun:       ExecutionFlagDefinition{Name: DryRunFlagName, Usage: DryRunFlagUsage, Enabled: dryRun},
		AssumeYes:    ExecutionFlagDefinition{Name: AssumeYesFlagName, Usage: AssumeYesFlagUsage, Shorthand: AssumeYesFlagShorthand, Enabled: assumeYes},
		RequireClean: ExecutionFlagDefinition{Name: RequireCleanFlagName, Usage: RequireCleanFlagUsage, Enabled: requireClean},
	}
}

// BindExecutionFlags attaches standardized execution flags to the provided command using persistent scope.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	persistentFlagSet := command.PersistentFlags()

	bindBoolFlag(persistentFlagSet, definitions.DryRun, defaults.DryRun)
	bindBoolFlag(persistentFlagSet, definitions.AssumeYes, defaults.AssumeYes)
	bindBoolFlag(persistentFlagSet, definitions.RequireClean, defaults.RequireClean)
}

// ResolveExecutionFlags reads the execution flags bound to command. The second value is false when none is bound.
func ResolveExecutionFlags(command *cobra.Command) (ExecutionFlags, bool) {
	if command == nil {
		return ExecutionFlags{}, false
	}
	flagSet := command.Flags()
	available := false
	executionFlags := ExecutionFlags{}
	if value, changed, found := lookupBoolFlag(flagSet, DryRunFlagName); found {
		executionFlags.DryRun, executionFlags.DryRunSet, available = value, changed, true
	}
	if value, changed, found := lookupBoolFlag(flagSet, AssumeYesFlagName); found {
		executionFlags.AssumeYes, executionFlags.AssumeYesSet, available = value, changed, true
	}
	if value, changed, found := lookupBoolFlag(flagSet, RequireCleanFlagName); found {
		executionFlags.RequireClean, executionFlags.RequireCleanSet, available = value, changed, true
	}
	return executionFlags, available
}

func bindBoolFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue bool) {
	if flagSet == nil {
		return
	}
	if !definition.Enabled {
		return
	}
	if len(definition.Name) == 0 {
		return
	}

	if len(definition.Shorthand) > 0 {
		flagSet.BoolP(definition.Name, definition.Shorthand, defaultValue, definition.Usage)
		return
	}

	flagSet.Bool(definition.Name, defaultValue, definition.Usage)
}

func lookupBoolFlag(flagSet *pflag.FlagSet, name string) (bool, bool, bool) {
	if flagSet.Lookup(name) == nil {
		return false, false, false
	}
	value, valueError := flagSet.GetBool(name)
	if valueError != nil {
		return false, false, false
	}
	return value, flagSet.Changed(name), true
}
