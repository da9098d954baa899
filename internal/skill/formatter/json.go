package formatter

import (
	"encoding/json"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/skill"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatSkills(infos []skill.Info) (string, error) {
	return marshalIndent(infos)
}

func (f *JSONFormatter) FormatRanking(rows []RankRow) (string, error) {
	return marshalIndent(rows)
}

func (f *JSONFormatter) FormatApprovals(pending []approval.Pending) (string, error) {
	if pending == nil {
		pending = []approval.Pending{}
	}
	return marshalIndent(pending)
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
