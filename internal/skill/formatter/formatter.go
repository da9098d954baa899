package formatter

import (
	"fmt"
	"strings"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/skill"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// RankRow is one line of a routing explanation.
type RankRow struct {
	Skill string  `json:"skill" yaml:"skill"`
	Score float64 `json:"score" yaml:"score"`
}

func RankRows(candidates []skill.Candidate) []RankRow {
	rows := make([]RankRow, len(candidates))
	for i, c := range candidates {
		rows[i] = RankRow{Skill: c.Skill.Name(), Score: c.Score}
	}
	return rows
}

type SkillFormatter interface {
	FormatSkills([]skill.Info) (string, error)
	FormatRanking([]RankRow) (string, error)
	FormatApprovals([]approval.Pending) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (SkillFormatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}
