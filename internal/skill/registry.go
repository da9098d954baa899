package skill

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	hearthErrors "github.com/harunnryd/hearth/internal/errors"
)

var validSkillName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Registry holds the skill set in registration order. It is filled once at
// startup and sealed; after Seal it is read-only.
type Registry struct {
	mu     sync.RWMutex
	skills []Skill
	index  map[string]int
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

func (r *Registry) Register(s Skill) error {
	if s == nil {
		return hearthErrors.InvalidInput("skill cannot be nil")
	}

	name := strings.TrimSpace(s.Name())
	if !validSkillName.MatchString(name) {
		return hearthErrors.InvalidInput(fmt.Sprintf("skill name %q must only contain alphanumeric characters, underscores, and hyphens", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s: %w", name, hearthErrors.ErrRegistrySealed)
	}
	if _, exists := r.index[name]; exists {
		return fmt.Errorf("register %s: %w", name, hearthErrors.ErrDuplicateSkillName)
	}

	r.index[name] = len(r.skills)
	r.skills = append(r.skills, s)
	slog.Debug("Registered skill", "name", name, "position", len(r.skills)-1)
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// All returns the skills in registration order.
func (r *Registry) All() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Skill, len(r.skills))
	copy(out, r.skills)
	return out
}

func (r *Registry) Get(name string) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, hearthErrors.NotFound(fmt.Sprintf("skill %s", name))
	}
	return r.skills[i], nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Info is the static metadata of a skill, used for listings.
type Info struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Source      string   `json:"source" yaml:"source"`
}

func (r *Registry) Infos() []Info {
	skills := r.All()
	infos := make([]Info, 0, len(skills))
	for _, s := range skills {
		source := "builtin"
		if m, ok := s.(*ManifestSkill); ok {
			source = m.Path
		}
		infos = append(infos, Info{
			Name:        s.Name(),
			Description: s.Description(),
			Keywords:    s.TriggerKeywords(),
			Source:      source,
		})
	}
	return infos
}
