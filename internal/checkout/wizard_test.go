package checkout

import (
	"errors"
	"testing"
)

func completeUpTo(t *testing.T, w *Wizard, questionID string) {
	t.Helper()
	answers := map[string]any{
		"business_name": "Acme Bakery",
		"business_desc": "Sourdough and pastries in Pune.",
		"template":      "minimal",
		"pages":         []string{"home", "about", "contact"},
		"contact":       Contact{Name: "Asha", Email: "asha@example.com", Phone: "+91 98765 43210"},
	}
	for !w.Done() && w.Current().ID != questionID {
		if err := w.Answer(answers[w.Current().ID]); err != nil {
			t.Fatalf("answer %s: %v", w.Current().ID, err)
		}
		if err := w.Next(); err != nil {
			t.Fatalf("next from %s: %v", w.Current().ID, err)
		}
	}
}

func TestForwardRequiresValidAnswer(t *testing.T) {
	w := NewWizard(PlanByName("starter"))

	if err := w.Next(); !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("Next without answer: got %v, want ErrAnswerRequired", err)
	}
	if err := w.Answer("   "); !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("blank text answer: got %v", err)
	}
	if err := w.Answer("Acme Bakery"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if w.Index() != 1 {
		t.Fatalf("Index = %d, want 1", w.Index())
	}
}

func TestBackIsUnconditional(t *testing.T) {
	w := NewWizard(PlanByName("starter"))
	completeUpTo(t, w, "template")

	w.Back()
	if w.Current().ID != "business_desc" {
		t.Fatalf("Current = %s, want business_desc", w.Current().ID)
	}
	// Back at the first question stays put.
	w.Back()
	w.Back()
	if w.Index() != 0 {
		t.Fatalf("Index = %d, want 0", w.Index())
	}
}

// Selecting L+1 options on a plan with limit L always leaves the count at L.
func TestCheckboxHardCap(t *testing.T) {
	plan := PlanByName("starter") // limit 3
	w := NewWizard(plan)
	completeUpTo(t, w, "pages")

	options := w.Current().Options
	for i := 0; i < plan.PageLimit; i++ {
		if err := w.Select(options[i]); err != nil {
			t.Fatalf("Select %d: %v", i, err)
		}
	}
	if err := w.Select(options[plan.PageLimit]); !errors.Is(err, ErrPageLimit) {
		t.Fatalf("Select past limit: got %v, want ErrPageLimit", err)
	}

	selected, _ := w.Answers()["pages"].([]string)
	if len(selected) != plan.PageLimit {
		t.Fatalf("selection count = %d, want %d", len(selected), plan.PageLimit)
	}
}

func TestCheckboxBulkAnswerTruncatesToLimit(t *testing.T) {
	plan := PlanByName("starter")
	w := NewWizard(plan)
	completeUpTo(t, w, "pages")

	if err := w.Answer([]string{"home", "about", "services", "blog"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	selected, _ := w.Answers()["pages"].([]string)
	if len(selected) != plan.PageLimit {
		t.Fatalf("selection count = %d, want %d", len(selected), plan.PageLimit)
	}
	// The earliest selections survive; the most recent is reverted.
	if selected[0] != "home" || selected[2] != "services" {
		t.Fatalf("selection = %v", selected)
	}
}

func TestDeselectThenNextRevalidates(t *testing.T) {
	w := NewWizard(PlanByName("starter"))
	completeUpTo(t, w, "pages")

	if err := w.Select("home"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	w.Deselect("home")
	if err := w.Next(); !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("Next with empty selection: got %v, want ErrAnswerRequired", err)
	}
}

func TestContactRequiresAllThreeFields(t *testing.T) {
	w := NewWizard(PlanByName("starter"))
	completeUpTo(t, w, "contact")

	cases := []Contact{
		{Name: "", Email: "a@b.com", Phone: "123"},
		{Name: "Asha", Email: "", Phone: "123"},
		{Name: "Asha", Email: "a@b.com", Phone: ""},
	}
	for i, contact := range cases {
		if err := w.Answer(contact); !errors.Is(err, ErrContactRequired) {
			t.Errorf("case %d: got %v, want ErrContactRequired", i, err)
		}
	}

	if err := w.Answer(Contact{Name: "Asha", Email: "a@b.com", Phone: "123"}); err != nil {
		t.Fatalf("valid contact: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !w.Done() {
		t.Fatal("wizard should be finished")
	}
}

func TestUnknownChoiceRejected(t *testing.T) {
	w := NewWizard(PlanByName("starter"))
	completeUpTo(t, w, "template")
	if err := w.Answer("brutalist"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("unknown template: got %v", err)
	}
}

func TestPlanByNameFallsBack(t *testing.T) {
	if PlanByName("nonsense").Name != "starter" {
		t.Fatal("unknown plan should fall back to starter")
	}
	if PlanByName("PREMIUM").Name != "premium" {
		t.Fatal("plan lookup should be case-insensitive")
	}
}
