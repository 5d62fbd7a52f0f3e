package tone

import (
	"strings"
	"testing"
)

func TestObserveCues(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantTag string
	}{
		{"short message", "头疼", "concise"},
		{"anxious phrasing", "医生我很担心，这个病严重吗", "anxious"},
		{"plain language request", "您说的我不太明白，能说简单点吗", "plain_language"},
		{"clinical vocabulary", "我的血常规报告显示白细胞偏高", "technical"},
		{"long narrative", strings.Repeat("从上周开始我一直觉得头晕，", 5), "detailed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := observe(tt.message)
			if _, ok := obs[tt.wantTag]; !ok {
				t.Errorf("expected observation %q from %q, got %v", tt.wantTag, tt.message, obs)
			}
		})
	}
}

func TestObserveEmptyMessage(t *testing.T) {
	if obs := observe("   "); obs != nil {
		t.Errorf("expected nil observations for blank message, got %v", obs)
	}
}

func TestTrackerActivatesAfterRepeatedObservations(t *testing.T) {
	tr := NewTracker()
	// One anxious message is not enough to activate the tag.
	tr.Observe("我很担心这个症状")
	if guide := tr.Guide(); guide != "" {
		t.Errorf("expected no guide after one observation, got %q", guide)
	}

	for i := 0; i < 5; i++ {
		tr.Observe("我还是很担心，怎么办")
	}
	guide := tr.Guide()
	if guide == "" {
		t.Fatal("expected guide after repeated anxious messages")
	}
	if !strings.Contains(guide, "安抚") {
		t.Errorf("expected reassurance instruction, got %q", guide)
	}
}

func TestTrackerDecaysStaleTags(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 5; i++ {
		tr.Observe("嗯")
	}
	if got := tr.Tags(); len(got) != 1 || got[0] != "concise" {
		t.Fatalf("expected concise active, got %v", got)
	}

	// A run of long messages deactivates concise and activates detailed.
	long := strings.Repeat("症状从三天前开始，先是轻微的头晕，", 4)
	for i := 0; i < 8; i++ {
		tr.Observe(long)
	}
	tags := tr.Tags()
	for _, tag := range tags {
		if tag == "concise" {
			t.Errorf("expected concise deactivated, active tags: %v", tags)
		}
	}
}

func TestMutualExclusion(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 6; i++ {
		tr.Observe("化验报告说简单点我不太明白")
	}
	tags := tr.Tags()
	plain, technical := false, false
	for _, tag := range tags {
		if tag == "plain_language" {
			plain = true
		}
		if tag == "technical" {
			technical = true
		}
	}
	if plain && technical {
		t.Errorf("plain_language and technical both active: %v", tags)
	}
}

func TestBuildGuideEmpty(t *testing.T) {
	if got := BuildGuide(nil); got != "" {
		t.Errorf("expected empty guide for no tags, got %q", got)
	}
}

func TestBuildGuideContainsEachTag(t *testing.T) {
	guide := BuildGuide([]string{"concise", "plain_language"})
	if !strings.Contains(guide, "精炼") {
		t.Errorf("expected concise instruction, got %q", guide)
	}
	if !strings.Contains(guide, "术语") {
		t.Errorf("expected plain-language instruction, got %q", guide)
	}
}

func TestClamp(t *testing.T) {
	if clamp(-0.5) != 0 {
		t.Error("expected negative clamped to 0")
	}
	if clamp(1.5) != 1 {
		t.Error("expected >1 clamped to 1")
	}
}
