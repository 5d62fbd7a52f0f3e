package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/medpipe/medpipe/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       *openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func completionWith(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func testClient(mock *mockChatService) *Client {
	return &Client{
		chat:          mock,
		model:         openai.ChatModelGPT4oMini,
		maxTokens:     800,
		temperature:   0.7,
		minConfidence: models.DefaultMinConfidence,
	}
}

func TestGenerateSuccess(t *testing.T) {
	mock := &mockChatService{resp: completionWith("建议多休息")}
	client := testClient(mock)

	out, err := client.Generate(context.Background(), models.StateMedicalAdvice, nil, PromptContext{
		KnowledgeContext: "知识片段",
		FormattedInfo:    "主要症状: 头痛",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "建议多休息" {
		t.Errorf("expected generated text, got %q", out)
	}
	if len(mock.lastParams.Messages) != 2 {
		t.Errorf("expected system + user message, got %d messages", len(mock.lastParams.Messages))
	}
}

func TestGenerateIncludesHistory(t *testing.T) {
	mock := &mockChatService{resp: completionWith("ok")}
	client := testClient(mock)

	history := []models.ConversationMessage{
		{Role: "user", Content: "我头痛"},
		{Role: "assistant", Content: "持续多久了？"},
	}
	if _, err := client.Generate(context.Background(), models.StateDiagnosis, history, PromptContext{FormattedInfo: "info"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// system + 2 history + 1 rendered prompt
	if len(mock.lastParams.Messages) != 4 {
		t.Errorf("expected 4 messages, got %d", len(mock.lastParams.Messages))
	}
}

func TestGenerateServiceError(t *testing.T) {
	mock := &mockChatService{err: errors.New("service failure")}
	client := testClient(mock)

	_, err := client.Generate(context.Background(), models.StateReferral, nil, PromptContext{})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected wrapped service failure, got %v", err)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	mock := &mockChatService{resp: &openai.ChatCompletion{}}
	client := testClient(mock)

	_, err := client.Generate(context.Background(), models.StateEducation, nil, PromptContext{})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerateRejectsCollectionState(t *testing.T) {
	client := testClient(&mockChatService{resp: completionWith("x")})
	if _, err := client.Generate(context.Background(), models.StateCollectingSymptoms, nil, PromptContext{}); err == nil {
		t.Error("expected error for state without generation template")
	}
}

func TestNewClientNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet, got %v", err)
	}
}

func TestNewClientWithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("test-model"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "test-model" {
		t.Errorf("expected model override, got %s", cli.model)
	}
}

func TestDetectIntentGreetingShortcut(t *testing.T) {
	client := testClient(&mockChatService{err: errors.New("must not be called")})
	intent, err := client.DetectIntent(context.Background(), "你好")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Primary != "greeting" {
		t.Errorf("expected greeting, got %s", intent.Primary)
	}
}

func TestDetectIntentGratitudeShortcut(t *testing.T) {
	client := testClient(&mockChatService{err: errors.New("must not be called")})
	intent, err := client.DetectIntent(context.Background(), "谢谢")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Primary != "gratitude" {
		t.Errorf("expected gratitude, got %s", intent.Primary)
	}
}

func TestDetectIntentFromModel(t *testing.T) {
	mock := &mockChatService{resp: completionWith(`{"primary_intent":"report_symptom","confidence":0.9}`)}
	client := testClient(mock)

	intent, err := client.DetectIntent(context.Background(), "我最近总是头痛")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Primary != "report_symptom" || intent.Confidence != 0.9 {
		t.Errorf("unexpected intent: %+v", intent)
	}
}

func TestDetectIntentConfidenceFloor(t *testing.T) {
	mock := &mockChatService{resp: completionWith(`{"primary_intent":"report_symptom","confidence":0.4}`)}
	client := testClient(mock)

	intent, err := client.DetectIntent(context.Background(), "我最近总是头痛")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Primary != IntentOther {
		t.Errorf("low confidence should fall back to other, got %s", intent.Primary)
	}
}

func TestDetectIntentMalformedOutput(t *testing.T) {
	mock := &mockChatService{resp: completionWith("这不是JSON")}
	client := testClient(mock)

	intent, err := client.DetectIntent(context.Background(), "随便说点什么")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Primary != IntentOther {
		t.Errorf("malformed output should fall back to other, got %s", intent.Primary)
	}
}
