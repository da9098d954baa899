package skill

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petCareManifest = `---
name: pet-care
description: Reminds the family to feed the dog
keywords: [dog, feed, walk the dog]
weight: 0.4
response: Biscuit was last fed at 7am.
---
# Pet care

Tracks feeding.
`

const groceryManifest = `---
name: grocery-order
description: Places the weekly grocery order
keywords: [groceries, grocery order]
approval:
  description: Place the weekly grocery order
  details: ["Store: Corner Market", "Total: about $80"]
  approved: Order placed.
---
Weekly order.
`

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, ManifestFileName), []byte(content), 0644))
}

func TestParseManifest(t *testing.T) {
	s, err := ParseManifest([]byte(petCareManifest))
	require.NoError(t, err)

	assert.Equal(t, "pet-care", s.Name())
	assert.Equal(t, []string{"dog", "feed", "walk the dog"}, s.TriggerKeywords())
	assert.Equal(t, 0.4, s.Weight)
	assert.Equal(t, DefaultManifestCap, s.Cap)
	assert.Contains(t, s.Body, "Tracks feeding.")

	assert.InDelta(t, 0.8, s.CanHandle(NewIntent("ws", "", "Did anyone feed the dog?")), 1e-9)

	res := s.Execute(context.Background(), Context{})
	assert.Equal(t, KindResponse, res.Kind())
	assert.Equal(t, "Biscuit was last fed at 7am.", res.Text())
}

func TestParseManifest_WithApproval(t *testing.T) {
	s, err := ParseManifest([]byte(groceryManifest))
	require.NoError(t, err)
	assert.Equal(t, DefaultManifestWeight, s.Weight)

	res := s.Execute(context.Background(), Context{})
	require.Equal(t, KindNeedsApproval, res.Kind())

	req := res.Approval()
	assert.Equal(t, RiskMedium, req.Risk)
	assert.Equal(t, []string{"Store: Corner Market", "Total: about $80"}, req.Details)
	assert.Equal(t, "Order placed.", req.OnDecision(context.Background(), true).Text())
	assert.Equal(t, "Okay, I won't go ahead with that.", req.OnDecision(context.Background(), false).Text())
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    ManifestErrorCode
	}{
		{"no frontmatter", "# just markdown", CodeMissingFrontmatter},
		{"unterminated", "---\nname: x\n", CodeMissingFrontmatter},
		{"bad yaml", "---\nname: [x\n---\nbody", CodeInvalidYAML},
		{"bad name", "---\nname: has space\nkeywords: [a]\n---\nbody", CodeInvalidField},
		{"no keywords", "---\nname: x\n---\nbody", CodeInvalidField},
		{"bad risk", "---\nname: x\nkeywords: [a]\napproval:\n  risk: extreme\n---\nbody", CodeInvalidField},
		{"empty", "---\nname: x\nkeywords: [a]\n---\n", CodeInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.content))
			var me *ManifestError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.code, me.Code)
		})
	}
}

func TestLoadManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b-pets", petCareManifest)
	writeManifest(t, dir, "a-grocery", groceryManifest)
	writeManifest(t, dir, "c-broken", "not a manifest")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "d-empty"), 0755))

	skills, err := LoadManifests(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c-broken")

	require.Len(t, skills, 2)
	assert.Equal(t, "grocery-order", skills[0].Name())
	assert.Equal(t, "pet-care", skills[1].Name())
	assert.Equal(t, filepath.Join(dir, "b-pets", ManifestFileName), skills[1].(*ManifestSkill).Path)
}

func TestLoadManifests_Disabled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "pets", petCareManifest)
	writeManifest(t, dir, "grocery", groceryManifest)

	skills, err := LoadManifests(dir, []string{"grocery-order"})
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "pet-care", skills[0].Name())
}

func TestLoadManifests_MissingDir(t *testing.T) {
	skills, err := LoadManifests(filepath.Join(t.TempDir(), "nope"), nil)
	assert.NoError(t, err)
	assert.Empty(t, skills)
}
