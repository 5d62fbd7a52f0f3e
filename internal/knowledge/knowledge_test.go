package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/store"
)

var _ Retriever = (*Base)(nil)

func seedBase(t *testing.T, texts ...string) *Base {
	t.Helper()
	st := store.NewInMemoryStore()
	snippets := make([]models.Snippet, 0, len(texts))
	for _, text := range texts {
		snippets = append(snippets, models.Snippet{Text: text})
	}
	if err := st.AddSnippets(snippets); err != nil {
		t.Fatalf("AddSnippets failed: %v", err)
	}
	return NewBase(st)
}

func TestSearchRanksByOverlap(t *testing.T) {
	b := seedBase(t,
		"科室：内科 主题：头痛 问：经常头痛怎么办 答：注意休息，避免熬夜",
		"科室：外科 主题：脚踝扭伤 问：扭伤如何处理 答：先冰敷再加压包扎",
		"科室：内科 主题：偏头痛 问：偏头痛发作时头痛剧烈 答：可在医生指导下用药",
	)

	hits, err := b.Search(context.Background(), "头痛", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if !strings.Contains(h.Text, "头痛") {
			t.Errorf("irrelevant snippet returned: %s", h.Text)
		}
		if h.Score <= 0 {
			t.Errorf("expected positive score, got %f", h.Score)
		}
	}
}

func TestSearchNoMatchReturnsEmptySlice(t *testing.T) {
	b := seedBase(t, "科室：外科 主题：脚踝扭伤 问：扭伤如何处理 答：先冰敷")

	hits, err := b.Search(context.Background(), "糖尿病", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	b := seedBase(t, "科室：内科 主题：头痛 问：怎么办 答：休息")
	hits, err := b.Search(context.Background(), "   ", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for blank query, got %d", len(hits))
	}
}

func TestSearchHonorsContextCancellation(t *testing.T) {
	b := seedBase(t, "科室：内科 主题：头痛 问：怎么办 答：休息")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Search(ctx, "头痛", 3); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestAddSnippetsUpdatesCacheAndStore(t *testing.T) {
	st := store.NewInMemoryStore()
	b := NewBase(st)

	if err := b.AddSnippets([]models.Snippet{{Text: "科室：内科 主题：咳嗽 问：久咳不愈 答：建议拍胸片"}}); err != nil {
		t.Fatalf("AddSnippets failed: %v", err)
	}

	hits, err := b.Search(context.Background(), "咳嗽", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit from cache, got %d", len(hits))
	}

	persisted, err := st.ListSnippets()
	if err != nil {
		t.Fatalf("ListSnippets failed: %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("expected 1 persisted snippet, got %d", len(persisted))
	}
}

func TestLenLoadsFromStore(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.AddSnippets([]models.Snippet{{Text: "a"}, {Text: "b"}}); err != nil {
		t.Fatalf("AddSnippets failed: %v", err)
	}
	b := NewBase(st)
	n, err := b.Len(context.Background())
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 snippets, got %d", n)
	}
}

func TestBigrams(t *testing.T) {
	grams := bigrams("头痛 严重")
	for _, want := range []string{"头痛", "痛严", "严重"} {
		if _, ok := grams[want]; !ok {
			t.Errorf("expected bigram %q", want)
		}
	}
	single := bigrams("痛")
	if _, ok := single["痛"]; !ok {
		t.Error("single rune input should yield the rune itself")
	}
}

func TestParseCSV(t *testing.T) {
	csvData := "department,title,ask,answer\n" +
		"内科,头痛,经常头痛怎么办,注意休息\n" +
		"外科,扭伤,脚踝扭伤如何处理,先冰敷再包扎\n"

	snippets, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}
	if !strings.Contains(snippets[0].Text, "科室：内科") {
		t.Errorf("expected department in text, got %q", snippets[0].Text)
	}
	if !strings.Contains(snippets[0].Text, "答：注意休息") {
		t.Errorf("expected answer in text, got %q", snippets[0].Text)
	}
	if snippets[1].Metadata["department"] != "外科" {
		t.Errorf("expected department metadata, got %+v", snippets[1].Metadata)
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("department,title\n内科,头痛\n")); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestParseCSVSkipsEmptyRows(t *testing.T) {
	csvData := "department,title,ask,answer\n,,,\n内科,头痛,怎么办,休息\n"
	snippets, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(snippets) != 1 {
		t.Errorf("expected empty row skipped, got %d snippets", len(snippets))
	}
}

func TestChunkRunes(t *testing.T) {
	long := strings.Repeat("预防感冒要多喝水。", 80) // 720 runes
	chunks := chunkRunes(long, 500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 500 {
			t.Errorf("chunk %d exceeds limit: %d runes", i, n)
		}
	}
	// Sentence-boundary preference: each non-final chunk ends with 。
	for i := 0; i < len(chunks)-1; i++ {
		if !strings.HasSuffix(chunks[i], "。") {
			t.Errorf("chunk %d does not end at a sentence boundary", i)
		}
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("expected empty string for no snippets, got %q", got)
	}
	got := FormatContext([]models.Snippet{{Text: "a"}, {Text: "b"}})
	if got != "a\n\nb" {
		t.Errorf("unexpected context: %q", got)
	}
}
