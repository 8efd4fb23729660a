// Package checkout implements the quiz wizard that collects a site brief
// and turns it into an order, plus the coupon pricing rules.
package checkout

import (
	"errors"
	"fmt"
	"strings"
)

type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionChoice   QuestionType = "choice"
	QuestionCheckbox QuestionType = "checkbox"
	QuestionContact  QuestionType = "contact"
)

type Question struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
}

// Plan bounds the checkbox page selection and sets the base price in minor
// currency units.
type Plan struct {
	Name      string `json:"name"`
	PageLimit int    `json:"pageLimit"`
	BasePrice int64  `json:"basePrice"`
}

var Plans = map[string]Plan{
	"starter":  {Name: "starter", PageLimit: 3, BasePrice: 499900},
	"business": {Name: "business", PageLimit: 6, BasePrice: 999900},
	"premium":  {Name: "premium", PageLimit: 10, BasePrice: 1999900},
}

// PlanByName falls back to starter for unknown plan query values.
func PlanByName(name string) Plan {
	if plan, ok := Plans[strings.ToLower(name)]; ok {
		return plan
	}
	return Plans["starter"]
}

// Questions returns the wizard's question sequence for a plan.
func Questions(plan Plan) []Question {
	return []Question{
		{ID: "business_name", Type: QuestionText, Prompt: "What is your business called?"},
		{ID: "business_desc", Type: QuestionText, Prompt: "Describe what you do in a sentence or two."},
		{ID: "template", Type: QuestionChoice, Prompt: "Pick a starting look.", Options: []string{"minimal", "bold", "classic", "playful"}},
		{ID: "pages", Type: QuestionCheckbox, Prompt: fmt.Sprintf("Which pages do you need? (up to %d on the %s plan)", plan.PageLimit, plan.Name),
			Options: []string{"home", "about", "services", "portfolio", "pricing", "blog", "faq", "team", "testimonials", "contact"}},
		{ID: "contact", Type: QuestionContact, Prompt: "Where can we reach you?"},
	}
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

var (
	ErrAnswerRequired  = errors.New("answer required")
	ErrUnknownOption   = errors.New("unknown option")
	ErrPageLimit       = errors.New("plan page limit reached")
	ErrContactRequired = errors.New("name, email, and phone are all required")
	ErrNotFinished     = errors.New("wizard not finished")
)

// Wizard is a linear state machine: current index plus accumulated answers.
// Forward movement requires the current answer to validate; backward
// movement is unconditional.
type Wizard struct {
	plan      Plan
	questions []Question
	index     int
	answers   map[string]any
}

func NewWizard(plan Plan) *Wizard {
	return &Wizard{
		plan:      plan,
		questions: Questions(plan),
		answers:   map[string]any{},
	}
}

func (w *Wizard) Plan() Plan { return w.plan }

func (w *Wizard) Index() int { return w.index }

func (w *Wizard) Current() Question { return w.questions[w.index] }

// Done reports whether every question has been passed.
func (w *Wizard) Done() bool { return w.index >= len(w.questions) }

// Answer validates and records a value for the current question without
// advancing.
func (w *Wizard) Answer(value any) error {
	if w.Done() {
		return errors.New("wizard already finished")
	}
	q := w.Current()

	switch q.Type {
	case QuestionText:
		text, _ := value.(string)
		if strings.TrimSpace(text) == "" {
			return ErrAnswerRequired
		}
		w.answers[q.ID] = strings.TrimSpace(text)

	case QuestionChoice:
		choice, _ := value.(string)
		if !contains(q.Options, choice) {
			return ErrUnknownOption
		}
		w.answers[q.ID] = choice

	case QuestionCheckbox:
		selected, ok := value.([]string)
		if !ok || len(selected) == 0 {
			return ErrAnswerRequired
		}
		for _, opt := range selected {
			if !contains(q.Options, opt) {
				return ErrUnknownOption
			}
		}
		// Hard cap: anything past the plan limit is reverted, keeping
		// the earliest selections.
		if len(selected) > w.plan.PageLimit {
			selected = selected[:w.plan.PageLimit]
		}
		w.answers[q.ID] = selected

	case QuestionContact:
		contact, ok := value.(Contact)
		if !ok || strings.TrimSpace(contact.Name) == "" || strings.TrimSpace(contact.Email) == "" || strings.TrimSpace(contact.Phone) == "" {
			return ErrContactRequired
		}
		w.answers[q.ID] = contact

	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

// Select adds one checkbox option to the current question's selection. At
// the plan limit the new option is rejected and the selection is unchanged.
func (w *Wizard) Select(option string) error {
	if w.Done() || w.Current().Type != QuestionCheckbox {
		return errors.New("current question is not a checkbox")
	}
	if !contains(w.Current().Options, option) {
		return ErrUnknownOption
	}

	selected, _ := w.answers[w.Current().ID].([]string)
	if contains(selected, option) {
		return nil
	}
	if len(selected) >= w.plan.PageLimit {
		return ErrPageLimit
	}
	w.answers[w.Current().ID] = append(selected, option)
	return nil
}

// Deselect removes one checkbox option; removing an unselected option is a
// no-op.
func (w *Wizard) Deselect(option string) {
	if w.Done() || w.Current().Type != QuestionCheckbox {
		return
	}
	selected, _ := w.answers[w.Current().ID].([]string)
	out := selected[:0]
	for _, opt := range selected {
		if opt != option {
			out = append(out, opt)
		}
	}
	w.answers[w.Current().ID] = out
}

// Next advances past the current question if it has a valid answer.
func (w *Wizard) Next() error {
	if w.Done() {
		return nil
	}
	q := w.Current()
	answer, ok := w.answers[q.ID]
	if !ok {
		return ErrAnswerRequired
	}
	// Re-run validation so a selection emptied by Deselect cannot pass.
	if err := w.Answer(answer); err != nil {
		return err
	}
	w.index++
	return nil
}

// Back moves to the previous question unconditionally.
func (w *Wizard) Back() {
	if w.index > 0 {
		w.index--
	}
}

// Answers returns a copy of the accumulated answer map.
func (w *Wizard) Answers() map[string]any {
	out := make(map[string]any, len(w.answers))
	for k, v := range w.answers {
		out[k] = v
	}
	return out
}

// Contact returns the collected contact details once answered.
func (w *Wizard) Contact() (Contact, bool) {
	contact, ok := w.answers["contact"].(Contact)
	return contact, ok
}

// Template returns the selected template once answered.
func (w *Wizard) Template() string {
	template, _ := w.answers["template"].(string)
	return template
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
