package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/skill"
)

const TypeMarketplaceListing = "marketplace_listing"

type scamSeverity string

const (
	severityHigh   scamSeverity = "HIGH"
	severityMedium scamSeverity = "MEDIUM"
	severityLow    scamSeverity = "LOW"
)

type scamPattern struct {
	phrase   string
	flag     string
	severity scamSeverity
}

var scamPatterns = []scamPattern{
	{"pay more than asking", "OVERPAYMENT SCAM: nobody pays more than listed price", severityHigh},
	{"cashier's check", "FAKE CHECK SCAM: cashier's checks can be forged", severityHigh},
	{"shipping label", "SHIPPING SCAM: they send fake labels to get your address", severityHigh},
	{"venmo me first", "PREPAYMENT SCAM: never send money to a buyer", severityHigh},
	{"zelle", "ZELLE RISK: Zelle payments are non-reversible; use for trusted only", severityMedium},
	{"gift card", "GIFT CARD SCAM: legitimate buyers never pay with gift cards", severityHigh},
	{"my assistant", "PROXY SCAM: \"my assistant will pick up\" is often fake", severityMedium},
	{"still available", "COMMON: this alone is normal, but watch for follow-up scam patterns", severityLow},
	{"send to this address", "ADDRESS HARVEST: don't share home address until verified meetup", severityMedium},
	{"paypal friends", "NO PROTECTION: PayPal Friends & Family has zero buyer/seller protection", severityMedium},
	{"deposit", "DEPOSIT SCAM: don't accept or send deposits for marketplace items", severityHigh},
	{"qr code", "QR SCAM: scanning unknown QR codes can steal payment info", severityHigh},
}

var safetyGuidelines = []string{
	"Meet at a police station or public place (many have designated spots)",
	"Bring someone with you, never meet alone",
	"Cash or verified payment only, count it in person",
	"Never share your home address until you know the buyer",
	"Daytime meetings only",
	"Trust your gut, if something feels off, cancel",
	"Screenshot the buyer's profile before meeting",
	"Tell someone where you're going and when to expect you back",
}

// Marketplace helps sell household items: scam checks, pricing tips and
// listing drafts. Publishing a listing is gated at medium risk.
type Marketplace struct {
	keywords []string
}

func NewMarketplace() *Marketplace {
	return &Marketplace{keywords: []string{
		"sell", "marketplace", "listing", "facebook marketplace", "craigslist",
		"offerup", "price", "how much", "get rid of", "declutter", "scam",
	}}
}

func (m *Marketplace) Name() string { return "marketplace-sell" }
func (m *Marketplace) Description() string {
	return "Help list items for sale, pricing guidance, scam detection, and safety"
}
func (m *Marketplace) TriggerKeywords() []string { return m.keywords }

func (m *Marketplace) CanHandle(intent skill.Intent) float64 {
	return skill.KeywordScore(intent, m.keywords, 0.3, 1)
}

func (m *Marketplace) Execute(ctx context.Context, sc skill.Context) skill.Result {
	intent := sc.Intent
	switch {
	case intent.MentionsAny("scam", "suspicious", "safe"):
		return skill.Response(ScamCheck(intent.Text))
	case intent.MentionsAny("price", "how much", "worth"):
		return skill.Response(pricingTips())
	default:
		return m.listing(sc)
	}
}

// ScamCheck flags known scam phrases in a buyer message and appends the
// safety rules.
func ScamCheck(message string) string {
	lower := strings.ToLower(message)

	var b strings.Builder
	b.WriteString("SCAM CHECK\n\n")

	var flags []scamPattern
	high := 0
	for _, p := range scamPatterns {
		if strings.Contains(lower, p.phrase) {
			flags = append(flags, p)
			if p.severity == severityHigh {
				high++
			}
		}
	}

	if len(flags) == 0 {
		b.WriteString("No obvious red flags detected, but stay cautious.\n\n")
		b.WriteString("GENERAL SCAM SIGNALS\n")
		b.WriteString("  - Buyer is overly eager or doesn't negotiate\n")
		b.WriteString("  - Asks to move off-platform immediately\n")
		b.WriteString("  - Won't meet in person\n")
		b.WriteString("  - Profile is brand new or has no history\n")
		b.WriteString("  - Sob story or urgency pressure\n")
	} else {
		if high > 0 {
			fmt.Fprintf(&b, "%d HIGH-RISK warning(s) detected!\n\n", high)
		}
		for _, f := range flags {
			fmt.Fprintf(&b, "  [%s] %s\n", f.severity, f.flag)
		}
	}

	b.WriteString("\nGOLDEN RULES\n")
	for _, rule := range safetyGuidelines {
		fmt.Fprintf(&b, "  - %s\n", rule)
	}
	b.WriteString("\nWhen in doubt, walk away. No sale is worth your safety.")
	return b.String()
}

func pricingTips() string {
	return `PRICING TIPS
  - Price 10-15% above your minimum, it leaves room for offers
  - "OBO" (or best offer) gets more messages
  - Relist after 7 days with a 10% drop if no interest
  - Bundle related items for faster sale

Want me to draft the listing at this price?`
}

func (m *Marketplace) listing(sc skill.Context) skill.Result {
	item := strings.TrimSpace(sc.Intent.Text)
	details := []string{"Item: " + item}
	for _, tip := range safetyGuidelines[:4] {
		details = append(details, "Safety: "+tip)
	}

	workspaceID := sc.Intent.WorkspaceID
	member := memberOf(sc)
	date := today(sc)
	bridge := sc.Activities

	return skill.NeedsApproval(&skill.ApprovalRequest{
		Description: "Publish a marketplace listing",
		Details:     details,
		Risk:        skill.RiskMedium,
		OnDecision: func(ctx context.Context, approved bool) skill.Result {
			if !approved {
				return skill.Response("Okay, I won't publish it. Tell me if you want to change the draft.")
			}
			content := encode(map[string]any{
				"type":   TypeMarketplaceListing,
				"item":   item,
				"member": member,
				"date":   date,
				"status": "published",
			})
			if err := bridge.Store(ctx, workspaceID, activity.TypeEpisodic, content, 0.5, []string{"marketplace", member}); err != nil {
				return skill.Failuref("could not save the listing: %v", err)
			}

			var b strings.Builder
			b.WriteString("LISTING PUBLISHED\n\n")
			fmt.Fprintf(&b, "Item: %s\n\n", item)
			b.WriteString("PHOTO CHECKLIST\n")
			b.WriteString("  [ ] Clean, well-lit main photo (natural light best)\n")
			b.WriteString("  [ ] Close-ups of any wear or damage\n")
			b.WriteString("  [ ] Size reference next to a common object\n")
			b.WriteString("  [ ] Brand/model label if applicable\n")
			b.WriteString("  [ ] All included accessories laid out")
			return skill.Response(b.String())
		},
	})
}
