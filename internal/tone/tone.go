// Package tone tracks the patient's communication style over a conversation
// and produces a style guide for response generation.
//
// Style tags are inferred from cues in the patient's messages and smoothed
// with an EMA so a single long or anxious message does not flip the style.
// Tags activate and deactivate on separate thresholds to avoid oscillation.
package tone

import (
	"math"
	"strings"
	"sync"
)

// AllTags is the fixed set of recognized style tags.
var AllTags = map[string]bool{
	"concise":        true, // short answers, little elaboration
	"detailed":       true, // long, thorough messages
	"anxious":        true, // worried phrasing, needs reassurance
	"plain_language": true, // asks for simpler wording
	"technical":      true, // uses clinical vocabulary comfortably
}

// mutuallyExclusivePairs lists tags where at most one may be active.
var mutuallyExclusivePairs = [][2]string{
	{"concise", "detailed"},
	{"plain_language", "technical"},
}

const (
	alpha             = float32(0.3)
	activateThreshold = float32(0.6)
	deactivateThresh  = float32(0.3)

	shortMessageRunes = 8
	longMessageRunes  = 50
)

// Cue word lists scanned in patient messages.
var (
	anxiousCues   = []string{"担心", "害怕", "紧张", "焦虑", "怎么办", "严重吗", "要紧吗"}
	plainCues     = []string{"听不懂", "说简单点", "通俗", "什么意思", "不太明白"}
	technicalCues = []string{"化验", "指标", "报告", "ct", "核磁", "血常规", "转氨酶", "血压值"}
)

// Tracker accumulates style observations for one conversation.
type Tracker struct {
	mu     sync.Mutex
	scores map[string]float32
	active map[string]bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		scores: make(map[string]float32),
		active: make(map[string]bool),
	}
}

// Observe updates the style scores from one patient message.
func (t *Tracker) Observe(message string) {
	obs := observe(message)
	if len(obs) == 0 && len(t.snapshot()) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for tag, v := range obs {
		prev := t.scores[tag]
		t.scores[tag] = clamp((1-alpha)*prev + alpha*v)
	}
	// Unobserved tags decay toward zero so stale styles deactivate.
	for tag, prev := range t.scores {
		if _, seen := obs[tag]; seen || prev <= 0 {
			continue
		}
		t.scores[tag] = clamp((1 - alpha) * prev)
	}

	// Mutual exclusion keeps the higher score when both cross the
	// activation threshold.
	for _, pair := range mutuallyExclusivePairs {
		a, b := pair[0], pair[1]
		sa, sb := t.scores[a], t.scores[b]
		if sa >= activateThreshold && sb >= activateThreshold {
			if sa >= sb {
				t.scores[b] = deactivateThresh
			} else {
				t.scores[a] = deactivateThresh
			}
		}
	}

	for tag, score := range t.scores {
		if score >= activateThreshold {
			t.active[tag] = true
		} else if score <= deactivateThresh {
			delete(t.active, tag)
		}
	}
}

// Tags returns the currently active style tags.
func (t *Tracker) Tags() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tags := make([]string, 0, len(t.active))
	for tag := range t.active {
		tags = append(tags, tag)
	}
	return tags
}

// Guide renders the active tags as an instruction block appended to the
// generation system prompt. Empty when no tag is active.
func (t *Tracker) Guide() string {
	return BuildGuide(t.Tags())
}

func (t *Tracker) snapshot() map[string]float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float32, len(t.scores))
	for k, v := range t.scores {
		out[k] = v
	}
	return out
}

// observe derives tag observations from one message.
func observe(message string) map[string]float32 {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return nil
	}
	obs := make(map[string]float32)

	n := len([]rune(msg))
	if n <= shortMessageRunes {
		obs["concise"] = 1.0
	} else if n >= longMessageRunes {
		obs["detailed"] = 1.0
	}
	for _, cue := range anxiousCues {
		if strings.Contains(msg, cue) {
			obs["anxious"] = 1.0
			break
		}
	}
	for _, cue := range plainCues {
		if strings.Contains(msg, cue) {
			obs["plain_language"] = 1.0
			break
		}
	}
	for _, cue := range technicalCues {
		if strings.Contains(msg, cue) {
			obs["technical"] = 1.0
			break
		}
	}
	return obs
}

// BuildGuide produces the instruction snippet for a set of active tags.
func BuildGuide(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}

	var b strings.Builder
	b.WriteString("回复时请注意患者的沟通习惯：\n")
	if set["concise"] {
		b.WriteString("- 患者偏好简短交流，回复尽量精炼。\n")
	}
	if set["detailed"] {
		b.WriteString("- 患者表达详尽，可以给出更充分的解释。\n")
	}
	if set["anxious"] {
		b.WriteString("- 患者情绪比较紧张，先安抚情绪再给建议，避免加重担忧的措辞。\n")
	}
	if set["plain_language"] {
		b.WriteString("- 避免专业术语，用日常语言解释。\n")
	}
	if set["technical"] {
		b.WriteString("- 患者熟悉医学术语，可以使用规范的临床表述。\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(math.Round(float64(v)*10000) / 10000)
}
