package ui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/subrepo/internal/ui"
)

func TestIOConfirmationPrompterConfirm(testInstance *testing.T) {
	testCases := []struct {
		name      string
		input     string
		confirmed bool
	}{
		{name: "short_yes", input: "y\n", confirmed: true},
		{name: "long_yes_mixed_case", input: "  YES \n", confirmed: true},
		{name: "no", input: "n\n", confirmed: false},
		{name: "empty_line", input: "\n", confirmed: false},
		{name: "end_of_input", input: "", confirmed: false},
		{name: "yes_without_newline", input: "yes", confirmed: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			output := &bytes.Buffer{}
			prompter := ui.NewIOConfirmationPrompter(strings.NewReader(testCase.input), output)

			confirmed, confirmError := prompter.Confirm("Delete? [y/N] ")
			require.NoError(testInstance, confirmError)
			require.Equal(testInstance, testCase.confirmed, confirmed)
			require.Equal(testInstance, "Delete? [y/N] ", output.String())
		})
	}
}
