package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	pathHeaderConstant              = "PATH"
	statusHeaderConstant            = "STATUS"
	committedHeaderConstant         = "COMMITTED"
	workingHeaderConstant           = "CHECKED OUT"
	urlHeaderConstant               = "URL"
	emptyCommitPlaceholderConstant  = "-"
	noReferencesMessageConstant     = "no nested repositories\n"
	porcelainLineTemplateConstant   = "%s\t%s\t%s\t%s\t%s\n"
	abbreviatedCommitLengthConstant = 12
	cellHorizontalPaddingConstant   = 1
	lineBreakConstant               = "\n"
)

// ReferenceRow is one line of the reference listing.
type ReferenceRow struct {
	Path            string
	Status          string
	CommittedCommit string
	WorkingCommit   string
	URL             string
}

// ReferenceTableFormatter renders reference listings.
type ReferenceTableFormatter struct{}

// RenderTable draws the rows as a bordered table with abbreviated commits.
func (formatter ReferenceTableFormatter) RenderTable(rows []ReferenceRow) string {
	if len(rows) == 0 {
		return noReferencesMessageConstant
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, cellHorizontalPaddingConstant)
	cellStyle := lipgloss.NewStyle().Padding(0, cellHorizontalPaddingConstant)

	referenceTable := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(pathHeaderConstant, statusHeaderConstant, committedHeaderConstant, workingHeaderConstant, urlHeaderConstant).
		StyleFunc(func(row int, column int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, row := range rows {
		referenceTable.Row(
			row.Path,
			row.Status,
			abbreviateCommit(row.CommittedCommit),
			abbreviateCommit(row.WorkingCommit),
			row.URL,
		)
	}

	rendered := referenceTable.String()
	if !strings.HasSuffix(rendered, lineBreakConstant) {
		rendered += lineBreakConstant
	}
	return rendered
}

// RenderPorcelain emits one tab separated line per row with full commit ids.
func (formatter ReferenceTableFormatter) RenderPorcelain(rows []ReferenceRow) string {
	var builder strings.Builder
	for _, row := range rows {
		builder.WriteString(fmt.Sprintf(porcelainLineTemplateConstant,
			row.Status,
			row.Path,
			placeholderWhenEmpty(row.CommittedCommit),
			placeholderWhenEmpty(row.WorkingCommit),
			row.URL,
		))
	}
	return builder.String()
}

// AbbreviateCommit shortens a commit id for display.
func AbbreviateCommit(commit string) string {
	return abbreviateCommit(commit)
}

func abbreviateCommit(commit string) string {
	if len(commit) == 0 {
		return emptyCommitPlaceholderConstant
	}
	if len(commit) > abbreviatedCommitLengthConstant {
		return commit[:abbreviatedCommitLengthConstant]
	}
	return commit
}

func placeholderWhenEmpty(value string) string {
	if len(value) == 0 {
		return emptyCommitPlaceholderConstant
	}
	return value
}
