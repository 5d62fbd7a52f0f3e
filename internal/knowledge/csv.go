package knowledge

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/medpipe/medpipe/internal/models"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// maxChunkRunes bounds snippet length. Longer Q&A entries are split so a
// single retrieval hit stays within a reasonable prompt budget.
const maxChunkRunes = 500

// LoadCSV reads a department Q&A dump and converts each row into one or more
// snippets. The expected columns are department, title, ask, answer; files
// exported from legacy systems are often GB18030-encoded, so non-UTF-8 input
// is transparently decoded.
func LoadCSV(path string) ([]models.Snippet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge CSV: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV parses CSV content from a reader. See LoadCSV for the format.
func ParseCSV(r io.Reader) ([]models.Snippet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge CSV: %w", err)
	}
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode knowledge CSV as GB18030: %w", err)
		}
		data = decoded
		slog.Debug("Knowledge CSV decoded from GB18030")
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("knowledge CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge CSV header: %w", err)
	}
	cols := columnIndex(header)
	for _, required := range []string{"department", "title", "ask", "answer"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("knowledge CSV missing column %q", required)
		}
	}

	var snippets []models.Snippet
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			slog.Warn("Skipping malformed knowledge CSV row", "line", line, "error", err)
			continue
		}
		sn := rowSnippets(record, cols)
		snippets = append(snippets, sn...)
	}
	slog.Info("Knowledge CSV parsed", "snippets", len(snippets))
	return snippets, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))] = i
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// rowSnippets renders a Q&A row into snippet text, chunking long answers.
func rowSnippets(record []string, cols map[string]int) []models.Snippet {
	department := field(record, cols, "department")
	title := field(record, cols, "title")
	ask := field(record, cols, "ask")
	answer := field(record, cols, "answer")
	if title == "" && ask == "" && answer == "" {
		return nil
	}

	prefix := fmt.Sprintf("科室：%s 主题：%s 问：%s 答：", department, title, ask)
	metadata := map[string]string{"department": department, "title": title}

	chunks := chunkRunes(answer, maxChunkRunes)
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	out := make([]models.Snippet, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, models.Snippet{Text: prefix + chunk, Metadata: metadata})
	}
	return out
}

// chunkRunes splits s into pieces of at most limit runes, preferring sentence
// boundaries when one falls in the second half of the window.
func chunkRunes(s string, limit int) []string {
	runes := []rune(s)
	if len(runes) <= limit {
		if len(runes) == 0 {
			return nil
		}
		return []string{s}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '。' || runes[i] == '！' || runes[i] == '？' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
