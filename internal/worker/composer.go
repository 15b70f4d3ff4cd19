// Package worker — message composition.
//
// Given a bot's configured templates (message_1, message_2) and plan list,
// Compose produces the exact ordered sequence of outbound sends. The
// branching below is the authoritative behavior:
//
//	m1  m2  plans  →  m1 plain; m2 with keyboard
//	m1  -   plans  →  m1 with keyboard
//	-   m2  plans  →  m2 with keyboard
//	-   -   plans  →  default prompt with keyboard
//	-   -   -      →  nothing (media only, if any)
//
// "with keyboard" attaches the plan-selection keyboard only when the plan
// list is non-empty; the text rows apply regardless.
package worker

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rmacedo/go-bot-relay/internal/domain"
	"github.com/rmacedo/go-bot-relay/internal/telegram"
)

// PlanCallbackPrefix prefixes the callback data of plan buttons; the suffix
// is the plan's index in the configured list.
const PlanCallbackPrefix = "buy_plan_"

// defaultPlanPrompt is sent when a bot has plans but no text templates.
const defaultPlanPrompt = "📋 *Choose your plan:*"

// labelCaser normalizes structured plan names for button captions.
var labelCaser = cases.Title(language.Und)

// Outbound is one composed send: text plus an optional inline keyboard.
type Outbound struct {
	Text     string
	Keyboard *telegram.InlineKeyboardMarkup
}

// Compose applies the composition table to the bot's configuration and
// returns the ordered sends. An empty slice means media-only (or nothing).
func Compose(bot *domain.Bot) []Outbound {
	kb := PlanKeyboard(bot.Plans)

	switch {
	case bot.Message1 != "" && bot.Message2 != "":
		return []Outbound{
			{Text: bot.Message1},
			{Text: bot.Message2, Keyboard: kb},
		}
	case bot.Message1 != "":
		return []Outbound{{Text: bot.Message1, Keyboard: kb}}
	case bot.Message2 != "":
		return []Outbound{{Text: bot.Message2, Keyboard: kb}}
	case kb != nil:
		return []Outbound{{Text: defaultPlanPrompt, Keyboard: kb}}
	default:
		return nil
	}
}

// PlanKeyboard builds the plan-selection keyboard: one row per plan, each
// button carrying a callback token encoding the plan's index. Returns nil for
// an empty list.
func PlanKeyboard(plans domain.PlanList) *telegram.InlineKeyboardMarkup {
	if len(plans) == 0 {
		return nil
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(plans))
	for i, p := range plans {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         planLabel(p),
			CallbackData: PlanCallbackPrefix + strconv.Itoa(i),
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// planLabel renders a button caption. Freeform plans render verbatim;
// structured plans get the standard caption with a title-cased name.
func planLabel(p domain.Plan) string {
	if p.IsFreeform() {
		return p.Freeform
	}
	name := p.Name
	if name == "" {
		name = "Plan"
	}
	return fmt.Sprintf("💎 %s - R$ %.2f (%d days)", labelCaser.String(name), p.Price, p.DurationDays)
}

// planDetails renders the detail message sent after a plan is selected.
func planDetails(p domain.Plan) string {
	if p.IsFreeform() {
		return fmt.Sprintf("✅ You selected: %s", p.Freeform)
	}
	var b strings.Builder
	b.WriteString("✅ *Selected plan:*\n\n")
	fmt.Fprintf(&b, "📦 *Name:* %s\n", p.Name)
	fmt.Fprintf(&b, "💰 *Price:* R$ %.2f\n", p.Price)
	fmt.Fprintf(&b, "📅 *Duration:* %d days\n\n", p.DurationDays)
	b.WriteString("_To continue, contact support._")
	return b.String()
}

// parsePlanIndex extracts the plan index from callback data. The bool result
// is false when the data is not a plan-selection token.
func parsePlanIndex(data string) (int, bool) {
	if !strings.HasPrefix(data, PlanCallbackPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(data, PlanCallbackPrefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
