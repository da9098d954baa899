package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const ManifestFileName = "SKILL.md"

// Default scoring for manifest skills when the frontmatter leaves it out.
const (
	DefaultManifestWeight = 0.3
	DefaultManifestCap    = 1.0
)

type ManifestErrorCode string

const (
	CodeMissingFrontmatter ManifestErrorCode = "MISSING_FRONTMATTER"
	CodeInvalidYAML        ManifestErrorCode = "INVALID_YAML"
	CodeInvalidField       ManifestErrorCode = "INVALID_FIELD"
)

type ManifestError struct {
	Path     string
	Code     ManifestErrorCode
	Message  string
	Original error
}

func (e *ManifestError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *ManifestError) Unwrap() error {
	return e.Original
}

type ManifestApproval struct {
	Description string   `yaml:"description"`
	Details     []string `yaml:"details"`
	Risk        string   `yaml:"risk"`
	Approved    string   `yaml:"approved"`
	Declined    string   `yaml:"declined"`
}

// Manifest is the frontmatter of a SKILL.md document.
type Manifest struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Keywords    []string          `yaml:"keywords"`
	Weight      float64           `yaml:"weight"`
	Cap         float64           `yaml:"cap"`
	Response    string            `yaml:"response"`
	Approval    *ManifestApproval `yaml:"approval"`
}

// ManifestSkill is a declarative skill: keyword scoring plus a canned
// response, optionally gated behind an approval.
type ManifestSkill struct {
	Manifest
	Body string
	Path string
	risk RiskLevel
}

func (m *ManifestSkill) Name() string { return m.Manifest.Name }
func (m *ManifestSkill) Description() string { return m.Manifest.Description }
func (m *ManifestSkill) TriggerKeywords() []string { return m.Keywords }

func (m *ManifestSkill) CanHandle(intent Intent) float64 {
	return KeywordScore(intent, m.Keywords, m.Weight, m.Cap)
}

func (m *ManifestSkill) Execute(ctx context.Context, sc Context) Result {
	response := m.Response
	if response == "" {
		response = m.Body
	}

	if m.Approval == nil {
		return Response(response)
	}

	approved := m.Approval.Approved
	if approved == "" {
		approved = response
	}
	declined := m.Approval.Declined
	if declined == "" {
		declined = "Okay, I won't go ahead with that."
	}

	return NeedsApproval(&ApprovalRequest{
		Description: m.Approval.Description,
		Details:     append([]string(nil), m.Approval.Details...),
		Risk:        m.risk,
		OnDecision: func(ctx context.Context, ok bool) Result {
			if ok {
				return Response(approved)
			}
			return Response(declined)
		},
	})
}

// ParseManifest parses a SKILL.md document: YAML frontmatter between ---
// fences followed by a markdown body.
func ParseManifest(content []byte) (*ManifestSkill, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return nil, &ManifestError{Code: CodeMissingFrontmatter, Message: "frontmatter must start with ---"}
	}

	end := strings.Index(text[4:], "\n---")
	if end == -1 {
		return nil, &ManifestError{Code: CodeMissingFrontmatter, Message: "frontmatter must end with ---"}
	}
	frontmatter := text[4 : 4+end+1]
	body := strings.TrimLeft(strings.TrimPrefix(text[4+end+1:], "---"), "\n")

	var m Manifest
	if err := yaml.Unmarshal([]byte(frontmatter), &m); err != nil {
		return nil, &ManifestError{Code: CodeInvalidYAML, Message: "invalid YAML frontmatter", Original: err}
	}

	m.Name = strings.TrimSpace(m.Name)
	if !validSkillName.MatchString(m.Name) {
		return nil, &ManifestError{Code: CodeInvalidField, Message: fmt.Sprintf("invalid skill name %q", m.Name)}
	}
	if len(m.Keywords) == 0 {
		return nil, &ManifestError{Code: CodeInvalidField, Message: "at least one keyword is required"}
	}
	if m.Weight <= 0 {
		m.Weight = DefaultManifestWeight
	}
	if m.Cap <= 0 || m.Cap > 1 {
		m.Cap = DefaultManifestCap
	}

	skill := &ManifestSkill{Manifest: m, Body: strings.TrimSpace(body), risk: RiskLow}
	if m.Approval != nil {
		risk, err := ParseRiskLevel(m.Approval.Risk)
		if err != nil {
			return nil, &ManifestError{Code: CodeInvalidField, Message: err.Error()}
		}
		if m.Approval.Risk == "" {
			risk = RiskMedium
		}
		skill.risk = risk
	}
	if skill.Response == "" && skill.Body == "" {
		return nil, &ManifestError{Code: CodeInvalidField, Message: "response or body is required"}
	}

	return skill, nil
}

func LoadManifestFile(path string) (*ManifestSkill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	skill, err := ParseManifest(data)
	if err != nil {
		var me *ManifestError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}
	skill.Path = path
	return skill, nil
}

// LoadManifests reads <dir>/<name>/SKILL.md for every subdirectory, sorted by
// directory name. A missing dir yields no skills. Broken manifests are skipped
// and reported together in the returned error.
func LoadManifests(dir string, disabled []string) ([]Skill, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	off := make(map[string]struct{}, len(disabled))
	for _, name := range disabled {
		off[strings.TrimSpace(name)] = struct{}{}
	}

	var skills []Skill
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name(), ManifestFileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		s, err := LoadManifestFile(path)
		if err != nil {
			slog.Warn("Failed to load skill manifest", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		if _, skip := off[s.Name()]; skip {
			slog.Debug("Skill disabled by config", "name", s.Name())
			continue
		}
		skills = append(skills, s)
	}

	return skills, errors.Join(errs...)
}
