package flow

import "testing"

func TestSeverityScore(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"8", 8},
		{"8分", 8},
		{"10", 10},
		{"大概6分左右", 6},
		{"轻微，能忍受", 0},
		{"", 0},
	}
	for _, tc := range cases {
		info := map[string]string{"severity": tc.value}
		if got := SeverityScore(info); got != tc.want {
			t.Errorf("SeverityScore(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
	if got := SeverityScore(map[string]string{}); got != 0 {
		t.Errorf("missing severity should score 0, got %d", got)
	}
}

func TestCheckEmergencyKeywords(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"头有点疼", false},
		{"疼得难忍", true},
		{"感觉呼吸困难", true},
		{"家人突然昏迷了", true},
		{"伤口不止血", true},
		{"有点咳嗽", false},
	}
	for _, tc := range cases {
		got, reason := CheckEmergency(map[string]string{}, tc.message)
		if got != tc.want {
			t.Errorf("CheckEmergency(%q) = %v, want %v", tc.message, got, tc.want)
		}
		if got && reason == "" {
			t.Errorf("emergency for %q should carry a reason", tc.message)
		}
	}
}

func TestCheckEmergencyScansSymptomFieldsOnly(t *testing.T) {
	// An allergy history mentioning 过敏 is base info, not a symptom, and
	// must not trip the emergency branch.
	info := map[string]string{"allergy": "对青霉素过敏，曾经喉咙肿胀"}
	if got, _ := CheckEmergency(info, "今天只是有点头晕"); got {
		t.Error("base info answers should not trigger an emergency")
	}

	info = map[string]string{"associated": "伴有胸痛"}
	if got, _ := CheckEmergency(info, ""); !got {
		t.Error("symptom field containing a critical keyword should trigger an emergency")
	}
}

func TestCheckEmergencySeverityThreshold(t *testing.T) {
	if got, _ := CheckEmergency(map[string]string{"severity": "7"}, ""); got {
		t.Error("severity 7 should not be an emergency")
	}
	if got, _ := CheckEmergency(map[string]string{"severity": "8"}, ""); !got {
		t.Error("severity 8 should be an emergency")
	}
}
