package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/wellness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.temporal.io/sdk/testsuite"
)

func seed(t *testing.T, b *activity.InMemory, member string, contents ...string) {
	t.Helper()
	for _, c := range contents {
		require.NoError(t, b.Store(context.Background(), "family", activity.TypeEpisodic, c, 0.5, []string{"wellness", member}))
	}
}

func newEnv(bridge activity.Bridge) *testsuite.TestWorkflowEnvironment {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	RegisterWorkflows(env)
	RegisterActivities(env, NewActivities(bridge))
	return env
}

func TestDailyWellnessCheckWorkflow(t *testing.T) {
	bridge := activity.NewInMemory()
	seed(t, bridge, "mom",
		`{"type":"hydration_daily_summary","goalMet":true}`,
		`{"type":"movement_daily_summary","goalMet":true}`,
	)
	seed(t, bridge, "dad", `{"type":"movement_daily_summary","goalMet":true}`)

	env := newEnv(bridge)
	env.ExecuteWorkflow(DailyWellnessCheckWorkflow, DailyWellnessInput{
		WorkspaceID: "family",
		Members:     []string{"mom", "dad", "mom"},
		Date:        "2025-03-14",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out wellness.DailySummary
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, 85, out.MemberScores["mom"].Score)
	assert.Equal(t, 70, out.MemberScores["dad"].Score)
	assert.Equal(t, 78, out.OverallScore)
	assert.Empty(t, out.Failed)

	assert.Equal(t, []string{wellness.EventStarted, wellness.EventComplete}, bridge.EventNames())
	complete := bridge.Events()[1]
	assert.EqualValues(t, 78, complete.Payload["overallScore"])
	assert.EqualValues(t, 2, complete.Payload["memberCount"])

	records := bridge.Records("family")
	last := records[len(records)-1]
	assert.Equal(t, wellness.SummaryTags, last.Tags)
	assert.Equal(t, wellness.TypeFamilyDaily, gjson.Get(last.Content, "type").String())
	assert.Equal(t, "2025-03-14", gjson.Get(last.Content, "date").String())
}

func TestDailyWellnessCheckWorkflow_RecallFailureIsolated(t *testing.T) {
	bridge := activity.NewInMemory()
	seed(t, bridge, "mom", `{"type":"movement_daily_summary","goalMet":true}`)
	bridge.FailRecall("wellness dad", errors.New("memory offline"))

	env := newEnv(bridge)
	env.ExecuteWorkflow(DailyWellnessCheckWorkflow, DailyWellnessInput{
		WorkspaceID: "family",
		Members:     []string{"mom", "dad"},
		Date:        "2025-03-14",
	})
	require.NoError(t, env.GetWorkflowError())

	var out wellness.DailySummary
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, []string{"dad"}, out.Failed)
	assert.Equal(t, wellness.BaseScore, out.MemberScores["dad"].Score)
	assert.Equal(t, 60, out.OverallScore)
}

func TestDailyWellnessCheckWorkflow_NoMembers(t *testing.T) {
	bridge := activity.NewInMemory()
	env := newEnv(bridge)
	env.ExecuteWorkflow(DailyWellnessCheckWorkflow, DailyWellnessInput{WorkspaceID: "family", Date: "2025-03-14"})
	require.NoError(t, env.GetWorkflowError())

	var out wellness.DailySummary
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Zero(t, out.OverallScore)
	assert.Len(t, bridge.Records("family"), 1)
}

func TestDailyWellnessCheckWorkflow_RequiresWorkspace(t *testing.T) {
	env := newEnv(activity.NewInMemory())
	env.ExecuteWorkflow(DailyWellnessCheckWorkflow, DailyWellnessInput{Members: []string{"mom"}})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "wellness-daily-family-2025-03-14", WorkflowID("family", "2025-03-14"))
}
