package skill

import (
	"math"
	"sort"
	"strings"
)

type Candidate struct {
	Skill Skill
	Score float64
}

// Router ranks the registry against an intent. It never mutates the intent or
// any skill and never calls Execute.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Route returns the highest scoring skill. Ties go to the earlier registered
// skill. When every score is zero there is no match.
func (r *Router) Route(intent Intent) (Skill, bool) {
	var best Skill
	bestScore := 0.0

	for _, s := range r.registry.All() {
		score := ClampScore(s.CanHandle(intent))
		if score > bestScore {
			best = s
			bestScore = score
		}
	}

	return best, best != nil
}

// Skills lists the routable skills in registration order.
func (r *Router) Skills() []Skill {
	return r.registry.All()
}

// Rank returns every skill with its score, highest first, registration order
// preserved within equal scores.
func (r *Router) Rank(intent Intent) []Candidate {
	skills := r.registry.All()
	candidates := make([]Candidate, len(skills))
	for i, s := range skills {
		candidates[i] = Candidate{Skill: s, Score: ClampScore(s.CanHandle(intent))}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// ClampScore maps a raw confidence into [0,1]; NaN counts as no confidence.
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score <= 0:
		return 0
	case score >= 1:
		return 1
	default:
		return score
	}
}

// KeywordScore counts keywords found in the intent text and scales the count
// by weight, capped at limit.
func KeywordScore(intent Intent, keywords []string, weight, limit float64) float64 {
	matches := 0
	for _, k := range keywords {
		if intent.Mentions(strings.ToLower(k)) {
			matches++
		}
	}
	return math.Min(float64(matches)*weight, limit)
}
