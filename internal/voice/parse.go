// Package voice turns transcribed speech into tracker commands. Parsing never
// fails: text that does not fit a command yields nil.
package voice

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

type CommandType int

const (
	Unknown CommandType = iota
	Mood
	Win
	Journal
	Sync
)

func (c CommandType) String() string {
	switch c {
	case Mood:
		return "mood"
	case Win:
		return "win"
	case Journal:
		return "journal"
	case Sync:
		return "sync"
	default:
		return "unknown"
	}
}

// MoodCommand levels are nil when not mentioned.
type MoodCommand struct {
	MoodLevel   *int
	EnergyLevel *int
	PainLevel   *int
}

type WinCommand struct {
	Description string
	Category    string
}

type JournalCommand struct {
	Text string
}

// Classify checks keywords in priority order; the first hit wins.
func Classify(text string) CommandType {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "mood", "energy", "pain"):
		return Mood
	case strings.Contains(lower, "win"):
		return Win
	case containsAny(lower, "journal", "note"):
		return Journal
	case strings.Contains(lower, "sync"):
		return Sync
	default:
		return Unknown
	}
}

var outOfTen = regexp.MustCompile(`(\d+)\s+out\s+of\s+10`)

var levelPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, kw := range []string{"mood", "feeling", "energy", "pain"} {
		levelPatterns[kw] = regexp.MustCompile(kw + `\s+(is\s+|level\s+)?(\d+)`)
	}
}

// ParseMood reads mood, energy and pain levels. Levels outside 1-10 are
// ignored; nil means no level was found at all.
func ParseMood(text string) *MoodCommand {
	lower := strings.ToLower(strings.TrimSpace(text))
	cmd := MoodCommand{
		MoodLevel:   extractLevel(lower, "mood", "feeling"),
		EnergyLevel: extractLevel(lower, "energy"),
		PainLevel:   extractLevel(lower, "pain"),
	}
	if cmd.MoodLevel == nil && cmd.EnergyLevel == nil && cmd.PainLevel == nil {
		return nil
	}
	return &cmd
}

func extractLevel(lower string, keywords ...string) *int {
	for _, kw := range keywords {
		m := levelPatterns[kw].FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if n, ok := level(m[2]); ok {
			return &n
		}
	}
	// "a 7 out of 10" counts only when the keyword is present.
	for _, kw := range keywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		if m := outOfTen.FindStringSubmatch(lower); m != nil {
			if n, ok := level(m[1]); ok {
				return &n
			}
		}
	}
	return nil
}

func level(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > 10 {
		return 0, false
	}
	return n, true
}

var winLeadIn = regexp.MustCompile(`log a win|add win|record win|i had a win(?:\s+today)?|new win`)

// ParseWin takes everything after a win lead-in such as "log a win:".
func ParseWin(text string) *WinCommand {
	text, lower := foldCase(text)
	loc := winLeadIn.FindStringIndex(lower)
	if loc == nil {
		return nil
	}
	desc := stripLeadPunct(text[loc[1]:])
	if desc == "" {
		return nil
	}
	return &WinCommand{Description: desc}
}

var journalLeadIns = []string{"journal entry", "add to journal", "journal", "note"}

const freeformJournalMin = 20

// ParseJournal strips a journal lead-in at the start of text. Longer text
// without one is kept verbatim.
func ParseJournal(text string) *JournalCommand {
	text, lower := foldCase(text)
	for _, lead := range journalLeadIns {
		if strings.HasPrefix(lower, lead) {
			body := stripLeadPunct(text[len(lead):])
			if body == "" {
				return nil
			}
			return &JournalCommand{Text: body}
		}
	}
	if utf8.RuneCountInString(text) > freeformJournalMin {
		return &JournalCommand{Text: text}
	}
	return nil
}

// foldCase trims text and returns it with a lowercase copy whose byte offsets
// match. When lowering changes the length, the lowercase form is used for both.
func foldCase(text string) (string, string) {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		return lower, lower
	}
	return text, lower
}

func stripLeadPunct(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ":")
	s = strings.TrimPrefix(s, ".")
	return strings.TrimSpace(s)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
