package compose

import (
	"reflect"
	"strings"
	"testing"

	"sitesmith/api/internal/store"
)

var testImages = []store.ProjectImage{
	{ID: "img_1", Name: "hero", URL: "https://cdn.example.com/hero.png"},
	{ID: "img_2", Name: "hero-dark", URL: "https://cdn.example.com/hero-dark.png"},
	{ID: "img_3", Name: "logo", URL: "https://cdn.example.com/logo.png"},
}

var testCollections = []store.Collection{
	{ID: "col_1", Name: "leads"},
	{ID: "col_2", Name: "newsletter"},
}

func TestDetectTrigger(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		cursor int
		want   Trigger
		ok     bool
	}{
		{"image trigger at end", "add @her", 8, Trigger{Type: MentionImage, Query: "her", Start: 4, End: 8}, true},
		{"collection trigger", "wire #lea", 9, Trigger{Type: MentionCollection, Query: "lea", Start: 5, End: 9}, true},
		{"bare at sign", "add @", 5, Trigger{Type: MentionImage, Query: "", Start: 4, End: 5}, true},
		{"trigger at text start", "@logo", 5, Trigger{Type: MentionImage, Query: "logo", Start: 0, End: 5}, true},
		{"cursor before trigger end", "add @hero", 4, Trigger{}, false},
		{"email address is not a trigger", "mail me@example", 15, Trigger{}, false},
		{"no trigger", "plain text", 10, Trigger{}, false},
		{"cursor out of range", "abc", 9, Trigger{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DetectTrigger(tc.text, tc.cursor)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("trigger = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSuggestFiltersCaseInsensitive(t *testing.T) {
	got := Suggest(Trigger{Type: MentionImage, Query: "HERO"}, testImages, testCollections)
	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(got))
	}
	if got[0].Name != "hero" || got[1].Name != "hero-dark" {
		t.Fatalf("unexpected suggestions: %+v", got)
	}

	got = Suggest(Trigger{Type: MentionCollection, Query: ""}, testImages, testCollections)
	if len(got) != 2 {
		t.Fatalf("empty query should match all collections, got %d", len(got))
	}
}

func TestApplyInsertsMarker(t *testing.T) {
	text := "use @her for the banner"
	cursor := 8

	pick := Mention{Type: MentionImage, ID: "img_1", Name: "hero", URL: "https://cdn.example.com/hero.png"}
	newText, newCursor, mentions, err := Apply(text, cursor, nil, pick)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if newText != "use hero [1]  for the banner" {
		t.Fatalf("text = %q", newText)
	}
	if newCursor != len("use hero [1] ") {
		t.Fatalf("cursor = %d", newCursor)
	}
	if len(mentions) != 1 || mentions[0].ID != "img_1" {
		t.Fatalf("mentions = %+v", mentions)
	}
}

func TestApplyNumbersSequentially(t *testing.T) {
	text, cursor, mentions := "", 0, []Mention(nil)

	for i, pick := range []Mention{
		{Type: MentionImage, ID: "img_1", Name: "hero"},
		{Type: MentionImage, ID: "img_3", Name: "logo"},
		{Type: MentionCollection, ID: "col_1", Name: "leads"},
	} {
		sigil := "@"
		if pick.Type == MentionCollection {
			sigil = "#"
		}
		text = text[:cursor] + sigil + text[cursor:]
		cursor++

		var err error
		text, cursor, mentions, err = Apply(text, cursor, mentions, pick)
		if err != nil {
			t.Fatalf("Apply %d: %v", i, err)
		}
	}

	if got := Markers(text); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("markers = %v, want [1 2 3]; text = %q", got, text)
	}
}

func TestApplyRequiresMatchingTrigger(t *testing.T) {
	if _, _, _, err := Apply("no trigger here", 15, nil, Mention{Type: MentionImage, Name: "hero"}); err == nil {
		t.Error("Apply without trigger should fail")
	}
	// An image pick cannot complete a collection trigger.
	if _, _, _, err := Apply("wire #lea", 9, nil, Mention{Type: MentionImage, Name: "hero"}); err == nil {
		t.Error("Apply with mismatched trigger type should fail")
	}
}

// After any removal the markers in the text and the list positions must both
// be a contiguous 1..N sequence.
func TestRemoveRenumbers(t *testing.T) {
	mentions := []Mention{
		{Type: MentionImage, ID: "img_1", Name: "hero"},
		{Type: MentionImage, ID: "img_3", Name: "logo"},
		{Type: MentionCollection, ID: "col_1", Name: "leads"},
	}
	text := "put hero [1] on top, logo [2] in the footer, wire leads [3] to the form"

	for removeAt := 0; removeAt < 3; removeAt++ {
		gotText, gotMentions := Remove(text, mentions, removeAt)
		if len(gotMentions) != 2 {
			t.Fatalf("removeAt=%d: %d mentions left, want 2", removeAt, len(gotMentions))
		}
		if strings.Contains(gotText, mentions[removeAt].Name+" [") {
			t.Errorf("removeAt=%d: removed mention still in text: %q", removeAt, gotText)
		}
		markers := Markers(gotText)
		if !reflect.DeepEqual(markers, []int{1, 2}) {
			t.Errorf("removeAt=%d: markers = %v, want [1 2]; text = %q", removeAt, markers, gotText)
		}
	}
}

func TestRemoveOutOfRangeIsNoop(t *testing.T) {
	mentions := []Mention{{Type: MentionImage, Name: "hero"}}
	text := "hero [1] here"
	gotText, gotMentions := Remove(text, mentions, 5)
	if gotText != text || len(gotMentions) != 1 {
		t.Fatal("out-of-range removal should change nothing")
	}
}

func TestBuildPrompt(t *testing.T) {
	mentions := []Mention{
		{Type: MentionImage, ID: "img_1", Name: "hero", URL: "https://cdn.example.com/hero.png"},
		{Type: MentionCollection, ID: "col_1", Name: "leads"},
	}
	text := "put hero [1] on top and wire leads [2] to the contact form"

	prompt := BuildPrompt(text, mentions)

	if strings.Contains(prompt, "[1]") || strings.Contains(prompt, "[2]") {
		t.Errorf("markers should be stripped: %q", prompt)
	}
	if !strings.Contains(prompt, "https://cdn.example.com/hero.png") {
		t.Errorf("image directive missing URL: %q", prompt)
	}
	if !strings.Contains(prompt, `"col_1"`) {
		t.Errorf("collection directive missing id: %q", prompt)
	}
	if !strings.Contains(prompt, "put on top and wire to the contact form") {
		t.Errorf("user text missing from prompt: %q", prompt)
	}
	// Directives come before the user text.
	if strings.Index(prompt, "hero.png") > strings.Index(prompt, "put on top") {
		t.Errorf("directives should precede the text: %q", prompt)
	}
}

func TestBuildPromptNoMentions(t *testing.T) {
	if got := BuildPrompt("just build me a page", nil); got != "just build me a page" {
		t.Fatalf("prompt = %q", got)
	}
}
