package worker

import (
	"strings"
	"testing"

	"github.com/rmacedo/go-bot-relay/internal/domain"
)

func plans(n int) domain.PlanList {
	l := make(domain.PlanList, 0, n)
	for i := 0; i < n; i++ {
		l = append(l, domain.Plan{Name: "plan", Price: float64(i + 1), DurationDays: 30})
	}
	return l
}

func TestComposeBothMessagesWithPlans(t *testing.T) {
	bot := &domain.Bot{Message1: "welcome", Message2: "pick one", Plans: plans(2)}
	out := Compose(bot)
	if len(out) != 2 {
		t.Fatalf("want 2 sends, got %d", len(out))
	}
	if out[0].Text != "welcome" || out[0].Keyboard != nil {
		t.Fatalf("first send must be plain message_1: %+v", out[0])
	}
	if out[1].Text != "pick one" || out[1].Keyboard == nil {
		t.Fatalf("second send must be message_2 with keyboard: %+v", out[1])
	}
}

func TestComposeOnlyMessage1(t *testing.T) {
	bot := &domain.Bot{Message1: "welcome", Plans: plans(1)}
	out := Compose(bot)
	if len(out) != 1 || out[0].Text != "welcome" || out[0].Keyboard == nil {
		t.Fatalf("message_1 should carry the keyboard: %+v", out)
	}
}

func TestComposeOnlyMessage2(t *testing.T) {
	bot := &domain.Bot{Message2: "pick one", Plans: plans(1)}
	out := Compose(bot)
	if len(out) != 1 || out[0].Text != "pick one" || out[0].Keyboard == nil {
		t.Fatalf("message_2 should carry the keyboard: %+v", out)
	}
}

func TestComposePlansOnlyUsesDefaultPrompt(t *testing.T) {
	bot := &domain.Bot{Plans: plans(1)}
	out := Compose(bot)
	if len(out) != 1 || out[0].Text != defaultPlanPrompt || out[0].Keyboard == nil {
		t.Fatalf("plans without templates should use the default prompt: %+v", out)
	}
}

func TestComposeNothingConfigured(t *testing.T) {
	if out := Compose(&domain.Bot{}); len(out) != 0 {
		t.Fatalf("empty configuration should compose nothing: %+v", out)
	}
}

func TestComposeMessagesWithoutPlans(t *testing.T) {
	bot := &domain.Bot{Message1: "a", Message2: "b"}
	out := Compose(bot)
	if len(out) != 2 {
		t.Fatalf("want 2 sends, got %d", len(out))
	}
	if out[0].Keyboard != nil || out[1].Keyboard != nil {
		t.Fatalf("no keyboard without plans: %+v", out)
	}
}

func TestPlanKeyboardCallbackEncoding(t *testing.T) {
	kb := PlanKeyboard(plans(3))
	if kb == nil || len(kb.InlineKeyboard) != 3 {
		t.Fatalf("want 3 rows, got %+v", kb)
	}
	for i, row := range kb.InlineKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons, want 1", i, len(row))
		}
		want := PlanCallbackPrefix + string(rune('0'+i))
		if row[0].CallbackData != want {
			t.Fatalf("row %d callback = %q, want %q", i, row[0].CallbackData, want)
		}
	}
}

func TestPlanLabelStructured(t *testing.T) {
	got := planLabel(domain.Plan{Name: "premium gold", Price: 49.9, DurationDays: 30})
	if !strings.Contains(got, "Premium Gold") {
		t.Fatalf("name not title-cased: %q", got)
	}
	if !strings.Contains(got, "R$ 49.90") || !strings.Contains(got, "30 days") {
		t.Fatalf("label missing price or duration: %q", got)
	}
}

func TestPlanLabelFreeform(t *testing.T) {
	if got := planLabel(domain.Plan{Freeform: "VIP - fale comigo"}); got != "VIP - fale comigo" {
		t.Fatalf("freeform label must render verbatim: %q", got)
	}
}

func TestPlanDetailsVariants(t *testing.T) {
	structured := planDetails(domain.Plan{Name: "Gold", Price: 10, DurationDays: 7})
	if !strings.Contains(structured, "Gold") || !strings.Contains(structured, "7 days") {
		t.Fatalf("structured details incomplete: %q", structured)
	}
	freeform := planDetails(domain.Plan{Freeform: "old plan"})
	if freeform != "✅ You selected: old plan" {
		t.Fatalf("freeform details: %q", freeform)
	}
}

func TestParsePlanIndex(t *testing.T) {
	cases := []struct {
		data string
		idx  int
		ok   bool
	}{
		{"buy_plan_0", 0, true},
		{"buy_plan_12", 12, true},
		{"buy_plan_", 0, false},
		{"buy_plan_-1", 0, false},
		{"buy_plan_x", 0, false},
		{"other_token", 0, false},
	}
	for _, tc := range cases {
		idx, ok := parsePlanIndex(tc.data)
		if idx != tc.idx || ok != tc.ok {
			t.Fatalf("parsePlanIndex(%q) = (%d, %v), want (%d, %v)", tc.data, idx, ok, tc.idx, tc.ok)
		}
	}
}
