package flow

import (
	"strings"
	"unicode"
)

// EmergencySeverityThreshold forces a referral when the reported severity
// score reaches this value during symptom collection.
const EmergencySeverityThreshold = 8

// ReferralSeverityThreshold routes diagnosis to referral instead of
// medical advice.
const ReferralSeverityThreshold = 5

// emergencyConditions groups critical-symptom keywords by condition name.
var emergencyConditions = map[string][]string{
	"严重疼痛": {"剧烈", "难忍", "剧痛"},
	"呼吸问题": {"呼吸困难", "胸闷", "窒息感"},
	"意识问题": {"意识不清", "昏迷", "晕厥"},
	"出血情况": {"大出血", "不止血"},
	"过敏反应": {"喉咙肿胀", "全身过敏"},
	"胸痛":   {"胸痛", "心绞痛"},
}

// symptomFields are the field values scanned for critical keywords. Base
// info answers (e.g. an allergy history of "对青霉素过敏") must not trip the
// emergency branch.
var symptomFields = []string{"main", "duration", "severity", "pattern", "factors", "associated"}

// SeverityScore extracts a numeric severity score from the collected info.
// The severity answer may be free text; the first run of digits is taken as
// the score ("8", "8分", "大概8成" all yield 8). Missing or non-numeric
// answers score zero.
func SeverityScore(info map[string]string) int {
	return parseLeadingNumber(info["severity"])
}

func parseLeadingNumber(s string) int {
	n, found := 0, false
	for _, r := range s {
		if unicode.IsDigit(r) {
			n = n*10 + int(r-'0')
			found = true
			continue
		}
		if found {
			break
		}
	}
	if !found {
		return 0
	}
	return n
}

// CheckEmergency reports whether the current message or the collected
// symptom answers indicate an emergency, along with a short reason.
func CheckEmergency(info map[string]string, message string) (bool, string) {
	if SeverityScore(info) >= EmergencySeverityThreshold {
		return true, "症状严重程度较高，建议及时就医"
	}

	texts := []string{message}
	for _, field := range symptomFields {
		if v, ok := info[field]; ok {
			texts = append(texts, v)
		}
	}
	for _, text := range texts {
		for condition, keywords := range emergencyConditions {
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					return true, "发现" + condition + "，建议立即就医"
				}
			}
		}
	}
	return false, ""
}
