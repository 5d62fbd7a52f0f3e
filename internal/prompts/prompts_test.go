package prompts

import (
	"strings"
	"testing"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/models"
)

func TestQuestionKnownField(t *testing.T) {
	f := catalog.Field{ID: "age", ZhName: "年龄"}
	if q := Question(f); q != "请问您今年多大年纪？" {
		t.Errorf("unexpected age question: %q", q)
	}
}

func TestQuestionFallback(t *testing.T) {
	f := catalog.Field{ID: "unknown_field", ZhName: "某项信息", Examples: []string{"示例一", "示例二"}}
	q := Question(f)
	if !strings.Contains(q, "某项信息") || !strings.Contains(q, "示例一") {
		t.Errorf("fallback question should use catalog metadata, got %q", q)
	}
}

func TestRenderWithKnowledge(t *testing.T) {
	out, ok := Render(models.StateReferral, "医学知识片段", "年龄: 35岁", "urgent")
	if !ok {
		t.Fatal("expected referral template to exist")
	}
	for _, want := range []string{"相关医学知识", "医学知识片段", "urgent", "年龄: 35岁"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWithoutKnowledge(t *testing.T) {
	out, ok := Render(models.StateDiagnosis, "", "主要症状: 头痛", "")
	if !ok {
		t.Fatal("expected diagnosis template to exist")
	}
	if strings.Contains(out, "相关医学知识") {
		t.Error("empty knowledge context should omit the knowledge block")
	}
	if !strings.Contains(out, "主要症状: 头痛") {
		t.Error("rendered prompt missing patient info")
	}
}

func TestRenderUrgencyDefault(t *testing.T) {
	out, _ := Render(models.StateReferral, "", "info", "")
	if !strings.Contains(out, "non_urgent") {
		t.Errorf("expected default urgency non_urgent, got:\n%s", out)
	}
}

func TestRenderUnknownState(t *testing.T) {
	if _, ok := Render(models.StateCollectingBaseInfo, "", "", ""); ok {
		t.Error("collection states should have no generation template")
	}
}
