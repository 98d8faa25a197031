package flags_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/utils/flags"
)

func TestFormatChoiceUsage(testInstance *testing.T) {
	testCases := []struct {
		name          string
		defaultChoice string
		choices       []string
		description   string
		expected      string
	}{
		{
			name:          "default_first_choice",
			defaultChoice: "structured",
			choices:       []string{"structured", "console"},
			description:   "Log format.",
			expected:      "`<STRUCTURED|console>` Log format.",
		},
		{
			name:          "default_second_choice",
			defaultChoice: "info",
			choices:       []string{"debug", "info", "warn"},
			description:   "Log level.",
			expected:      "`<debug|INFO|warn>` Log level.",
		},
		{
			name:          "empty_description",
			defaultChoice: "alpha",
			choices:       []string{"alpha", "beta"},
			expected:      "`<ALPHA|beta>`",
		},
		{
			name:          "duplicates_and_blanks_dropped",
			defaultChoice: "beta",
			choices:       []string{" beta ", "beta", "", "alpha"},
			description:   "Pick one.",
			expected:      "`<BETA|alpha>` Pick one.",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, flags.FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description))
		})
	}
}
