package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/skill"

	"github.com/tidwall/gjson"
)

const (
	TypeAnnouncement = "family_announcement"

	EventAnnouncement = "family.announcement"
)

// FamilyComms sends announcements to the household. Sending is medium risk,
// so the approval gate holds the prompt back during quiet hours.
type FamilyComms struct {
	keywords []string
}

func NewFamilyComms() *FamilyComms {
	return &FamilyComms{keywords: []string{
		"announce", "announcement", "tell everyone", "family meeting", "chore",
		"chores", "whose turn", "check in", "family calendar", "schedule",
		"coordinate", "who's doing", "assign", "rotate", "quiet hours",
	}}
}

func (f *FamilyComms) Name() string { return "family-comms" }
func (f *FamilyComms) Description() string {
	return "Family announcements, check-ins, and coordination"
}
func (f *FamilyComms) TriggerKeywords() []string { return f.keywords }

func (f *FamilyComms) CanHandle(intent skill.Intent) float64 {
	return skill.KeywordScore(intent, f.keywords, 0.3, 1)
}

func (f *FamilyComms) Execute(ctx context.Context, sc skill.Context) skill.Result {
	if sc.Intent.MentionsAny("announce", "tell everyone", "family meeting") {
		return f.announce(sc)
	}
	return f.recent(ctx, sc)
}

func (f *FamilyComms) announce(sc skill.Context) skill.Result {
	message := strings.TrimSpace(sc.Intent.Text)
	workspaceID := sc.Intent.WorkspaceID
	sender := memberOf(sc)
	at := now(sc).UTC()
	bridge := sc.Activities

	return skill.NeedsApproval(&skill.ApprovalRequest{
		Description: "Send family announcement",
		Details: []string{
			"Message: " + message,
			"From: " + sender,
		},
		Risk: skill.RiskMedium,
		OnDecision: func(ctx context.Context, approved bool) skill.Result {
			if !approved {
				return skill.Response("Announcement cancelled.")
			}

			content := encode(map[string]any{
				"type":    TypeAnnouncement,
				"message": message,
				"from":    sender,
				"sent_at": at,
				"status":  "sent",
			})
			if err := bridge.Store(ctx, workspaceID, activity.TypeEpisodic, content, 0.5, []string{"family-comms", "announcement"}); err != nil {
				return skill.Failuref("could not record announcement: %v", err)
			}
			bridge.EmitEvent(ctx, workspaceID, EventAnnouncement, map[string]any{"from": sender, "message": message})
			return skill.Response("ANNOUNCEMENT SENT\n\nMessage: " + message)
		},
	})
}

func (f *FamilyComms) recent(ctx context.Context, sc skill.Context) skill.Result {
	records, err := sc.Activities.Recall(ctx, sc.Intent.WorkspaceID, activity.RecallQuery{
		Query: "family announcement",
		Types: []string{activity.TypeEpisodic},
		Limit: 5,
		Tags:  []string{"family-comms", "announcement"},
	})
	if err != nil {
		return skill.Failuref("could not read announcements: %v", err)
	}

	var b strings.Builder
	b.WriteString("FAMILY CHECK-IN\n\n")
	shown := 0
	for _, rec := range records {
		if !gjson.Valid(rec.Content) {
			continue
		}
		msg := gjson.Get(rec.Content, "message")
		if !msg.Exists() {
			continue
		}
		fmt.Fprintf(&b, "  - %s (from %s)\n", msg.String(), gjson.Get(rec.Content, "from").String())
		shown++
	}
	if shown == 0 {
		b.WriteString("No recent announcements.\n")
	}
	b.WriteString("\nNeed to send a message to everyone? Say \"announce ...\".")
	return skill.Response(b.String())
}
