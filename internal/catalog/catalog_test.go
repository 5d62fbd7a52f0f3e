package catalog

import (
	"strings"
	"testing"
)

func mustLoad(t *testing.T) *Set {
	t.Helper()
	set, err := Load()
	if err != nil {
		t.Fatalf("failed to load embedded catalogs: %v", err)
	}
	return set
}

func TestLoadEmbeddedCatalogs(t *testing.T) {
	set := mustLoad(t)
	cases := []struct {
		name string
		want int
	}{
		{BaseInfoMapping, 5},
		{SymptomMapping, 6},
		{LifestyleMapping, 5},
		{CombinedMapping, 11},
	}
	for _, c := range cases {
		cat, err := set.Catalog(c.name)
		if err != nil {
			t.Fatalf("catalog %s: %v", c.name, err)
		}
		if cat.Len() != c.want {
			t.Errorf("catalog %s: expected %d fields, got %d", c.name, c.want, cat.Len())
		}
	}
}

func TestCatalogDeclarationOrder(t *testing.T) {
	set := mustLoad(t)
	base := set.BaseInfo()
	wantOrder := []string{"age", "gender", "medical_history", "allergy", "medication"}
	for i, f := range base.Fields() {
		if f.ID != wantOrder[i] {
			t.Errorf("field %d: expected %s, got %s", i, wantOrder[i], f.ID)
		}
	}
}

func TestUnfilledPriorityOrder(t *testing.T) {
	set := mustLoad(t)
	symptom := set.Symptom()

	// Nothing collected: high-importance fields first, in declaration order.
	unfilled := symptom.Unfilled(map[string]string{})
	if unfilled[0].ID != "main" || unfilled[1].ID != "duration" || unfilled[2].ID != "severity" {
		t.Errorf("unexpected high-tier order: %v", fieldIDs(unfilled[:3]))
	}

	// High tier answered: medium fields surface in declaration order.
	info := map[string]string{"main": "头痛", "duration": "2天", "severity": "3"}
	unfilled = symptom.Unfilled(info)
	if len(unfilled) != 3 || unfilled[0].ID != "pattern" {
		t.Errorf("expected pattern first among medium tier, got %v", fieldIDs(unfilled))
	}
}

func TestCompleteAndHighComplete(t *testing.T) {
	set := mustLoad(t)
	base := set.BaseInfo()

	info := map[string]string{"age": "35岁", "gender": "男"}
	if !base.HighComplete(info) {
		t.Error("expected high-importance fields to be complete")
	}
	if base.Complete(info) {
		t.Error("catalog should not be complete with medium fields missing")
	}

	for _, f := range base.Fields() {
		info[f.ID] = "无"
	}
	if !base.Complete(info) {
		t.Error("expected catalog to be complete")
	}
}

func TestFormatMedicalInfo(t *testing.T) {
	set := mustLoad(t)
	info := map[string]string{
		"age":   "35岁",
		"main":  "头痛",
		"sleep": "失眠",
	}
	out := set.FormatMedicalInfo(info)

	for _, want := range []string{"基本信息", "年龄: 35岁", "症状信息", "主要症状: 头痛", "生活习惯", "睡眠情况: 失眠"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted info missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "病史信息") {
		t.Error("empty section should be omitted")
	}
}

func TestFormatMedicalInfoEmpty(t *testing.T) {
	set := mustLoad(t)
	if out := set.FormatMedicalInfo(map[string]string{}); out != "" {
		t.Errorf("expected empty output for empty info, got %q", out)
	}
}

func TestDescribeFields(t *testing.T) {
	set := mustLoad(t)
	desc := set.Lifestyle().DescribeFields()
	if !strings.Contains(desc, "sleep(睡眠情况)") {
		t.Errorf("field description missing sleep entry:\n%s", desc)
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	doc := []byte(`{
		"base_info_mapping": [
			{"field_id": "age", "zh_name": "年龄", "importance": "high"},
			{"field_id": "age", "zh_name": "年龄", "importance": "high"}
		]
	}`)
	if _, err := parse(doc); err == nil {
		t.Error("expected error for duplicate field_id")
	}
}

func fieldIDs(fields []Field) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}
