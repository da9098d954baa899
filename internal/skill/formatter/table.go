package formatter

import (
	"fmt"
	"strings"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/skill"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

func (f *TableFormatter) FormatSkills(infos []skill.Info) (string, error) {
	if len(infos) == 0 {
		return "No skills registered", nil
	}

	t := f.newTable("#", "Name", "Keywords", "Source")
	for i, info := range infos {
		t.Row(
			fmt.Sprintf("%d", i+1),
			truncateString(info.Name, 24),
			truncateString(strings.Join(info.Keywords, ", "), 40),
			truncateString(info.Source, 30),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatRanking(rows []RankRow) (string, error) {
	if len(rows) == 0 {
		return "No skills registered", nil
	}

	t := f.newTable("Skill", "Score")
	for _, row := range rows {
		t.Row(row.Skill, fmt.Sprintf("%.2f", row.Score))
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatApprovals(pending []approval.Pending) (string, error) {
	if len(pending) == 0 {
		return "No pending approvals", nil
	}

	t := f.newTable("ID", "Workspace", "Skill", "Risk", "State", "Deliver At", "Description")
	for _, p := range pending {
		state := string(p.State)
		if p.Outcome != "" {
			state += " (" + string(p.Outcome) + ")"
		}
		t.Row(
			p.ID,
			truncateString(p.WorkspaceID, 16),
			truncateString(p.Skill, 20),
			string(p.Risk),
			state,
			p.DeliverAt.Local().Format("2006-01-02 15:04"),
			truncateString(p.Description, 40),
		)
	}

	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
