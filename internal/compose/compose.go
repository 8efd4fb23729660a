// Package compose turns free-text chat input with inline @image and
// #collection references into an annotated prompt for the generation model.
//
// A reference starts life as a trigger (`@par` typed at the cursor), becomes
// a mention once the user picks a suggestion, and is rendered in the text as
// "<name> [n]" where n is the mention's 1-based position. The marker sequence
// in the text and the mention list stay a contiguous 1..N sequence through
// every edit; removal renumbers both.
package compose

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sitesmith/api/internal/store"
)

type MentionType string

const (
	MentionImage      MentionType = "image"
	MentionCollection MentionType = "collection"
)

// Mention is one resolved reference. URL is set for images only; collections
// are bound by ID at submit time.
type Mention struct {
	Type MentionType `json:"type"`
	ID   string      `json:"id"`
	Name string      `json:"name"`
	URL  string      `json:"url,omitempty"`
}

// Trigger is a partially typed reference ending at the cursor.
type Trigger struct {
	Type  MentionType
	Query string
	Start int
	End   int
}

// A trigger is @ or # at a word start followed by the partial name, and it
// must end exactly at the cursor.
var triggerRe = regexp.MustCompile(`(?:^|\s)([@#])([\p{L}\p{N}_-]*)$`)

// DetectTrigger inspects the text up to the cursor and reports an open
// trigger, if any. Cursor is a byte offset into text.
func DetectTrigger(text string, cursor int) (Trigger, bool) {
	if cursor < 0 || cursor > len(text) {
		return Trigger{}, false
	}
	m := triggerRe.FindStringSubmatchIndex(text[:cursor])
	if m == nil {
		return Trigger{}, false
	}

	kind := MentionImage
	if text[m[2]:m[3]] == "#" {
		kind = MentionCollection
	}
	return Trigger{
		Type:  kind,
		Query: text[m[4]:m[5]],
		Start: m[2],
		End:   cursor,
	}, true
}

// Suggest filters the project's assets by case-insensitive substring match
// on the trigger query. An empty query matches everything.
func Suggest(trigger Trigger, images []store.ProjectImage, collections []store.Collection) []Mention {
	query := strings.ToLower(trigger.Query)

	var out []Mention
	switch trigger.Type {
	case MentionImage:
		for _, img := range images {
			if strings.Contains(strings.ToLower(img.Name), query) {
				out = append(out, Mention{Type: MentionImage, ID: img.ID, Name: img.Name, URL: img.URL})
			}
		}
	case MentionCollection:
		for _, col := range collections {
			if strings.Contains(strings.ToLower(col.Name), query) {
				out = append(out, Mention{Type: MentionCollection, ID: col.ID, Name: col.Name})
			}
		}
	}
	return out
}

// marker renders the literal text form of mention n.
func marker(name string, n int) string {
	return name + " [" + strconv.Itoa(n) + "]"
}

// Apply replaces the open trigger with the picked mention's marker text and
// appends the mention to the list. It returns the rewritten text, the new
// cursor position, and the grown mention list.
func Apply(text string, cursor int, mentions []Mention, pick Mention) (string, int, []Mention, error) {
	trigger, ok := DetectTrigger(text, cursor)
	if ok && trigger.Type != pick.Type {
		ok = false
	}
	if !ok {
		return text, cursor, mentions, fmt.Errorf("no open %s trigger at cursor", pick.Type)
	}

	inserted := marker(pick.Name, len(mentions)+1) + " "
	rewritten := text[:trigger.Start] + inserted + text[trigger.End:]
	newCursor := trigger.Start + len(inserted)
	return rewritten, newCursor, append(append([]Mention(nil), mentions...), pick), nil
}

// Remove deletes the mention at index, strips its marker from the text, and
// renumbers every later mention from [k] to [k-1] in both the list and the
// text. Renumbering is exact-substring surgery on "<name> [k]", so duplicate
// names resolve to the first occurrence.
func Remove(text string, mentions []Mention, index int) (string, []Mention) {
	if index < 0 || index >= len(mentions) {
		return text, mentions
	}

	removed := mentions[index]
	text = stripMarker(text, marker(removed.Name, index+1))

	remaining := append(append([]Mention(nil), mentions[:index]...), mentions[index+1:]...)
	for k := index + 1; k <= len(mentions)-1; k++ {
		old := marker(mentions[k].Name, k+1)
		text = strings.Replace(text, old, marker(mentions[k].Name, k), 1)
	}
	return text, remaining
}

// stripMarker removes the first occurrence of the marker plus one adjacent
// space so the surrounding words do not fuse.
func stripMarker(text, mark string) string {
	if idx := strings.Index(text, mark+" "); idx >= 0 {
		return text[:idx] + text[idx+len(mark)+1:]
	}
	if idx := strings.Index(text, mark); idx >= 0 {
		return text[:idx] + text[idx+len(mark):]
	}
	return text
}

// Markers extracts the marker numbers embedded in text, in order of
// appearance. Callers compare the result against their mention list.
func Markers(text string) []int {
	re := regexp.MustCompile(`\[(\d+)\]`)
	var nums []int
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

// BuildPrompt rewrites the submitted text into the model prompt. Each
// mention's marker is stripped in reverse list order, then a directive
// sentence binding the reference to its concrete id or URL is prepended for
// each mention in forward order.
func BuildPrompt(text string, mentions []Mention) string {
	for i := len(mentions) - 1; i >= 0; i-- {
		text = stripMarker(text, marker(mentions[i].Name, i+1))
	}
	text = strings.TrimSpace(text)

	var b strings.Builder
	for i, m := range mentions {
		switch m.Type {
		case MentionImage:
			fmt.Fprintf(&b, "For the image named %q (reference %d), use exactly this URL: %s\n", m.Name, i+1, m.URL)
		case MentionCollection:
			fmt.Fprintf(&b, "For the data collection named %q (reference %d), submit form data to the collection with id %q.\n", m.Name, i+1, m.ID)
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(text)
	return b.String()
}
