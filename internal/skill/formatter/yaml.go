package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/skill"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatSkills(infos []skill.Info) (string, error) {
	return marshalYAML(infos)
}

func (f *YAMLFormatter) FormatRanking(rows []RankRow) (string, error) {
	return marshalYAML(rows)
}

func (f *YAMLFormatter) FormatApprovals(pending []approval.Pending) (string, error) {
	return marshalYAML(pending)
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
