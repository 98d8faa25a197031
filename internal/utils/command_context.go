package utils

import "context"

type configurationFilePathKey struct{}

// CommandContextAccessor stores per-invocation values on the cobra command context.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath records which configuration file the invocation was loaded from.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathKey{}, configurationFilePath)
}

// ConfigurationFilePath returns the path recorded by WithConfigurationFilePath.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, found := executionContext.Value(configurationFilePathKey{}).(string)
	return configurationFilePath, found
}
