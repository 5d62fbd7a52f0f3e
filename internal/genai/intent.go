// Package genai provides intent detection for user messages.
//
// Intent detection is a generation-side concern: the dialogue core never
// consults it, but the surrounding surfaces may use it to annotate or route
// messages. Results below the configured confidence floor fall back to the
// catch-all intent.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"
)

// Intent is the classification result for one user message.
type Intent struct {
	Primary    string  `json:"primary_intent"`
	Confidence float64 `json:"confidence"`
}

// IntentOther is the catch-all intent used when classification is
// unavailable or not confident enough.
const IntentOther = "other"

// intentTypes enumerates the recognized intents with their display names.
var intentTypes = map[string]string{
	"report_symptom":  "报告症状",
	"ask_question":    "咨询问题",
	"request_info":    "请求信息",
	"express_concern": "表达担忧",
	"share_history":   "分享病史",
	"request_advice":  "请求建议",
	"emergency":       "紧急求助",
	"greeting":        "问候",
	"farewell":        "道别",
	"gratitude":       "表达感谢",
	"clarification":   "请求澄清",
	"confirmation":    "确认信息",
	"rejection":       "拒绝建议",
	"follow_up":       "随访",
	IntentOther:       "其他",
}

// Shortcut phrases handled without a model call.
var (
	simpleGreetings = []string{"你好", "您好", "嗨", "哈喽", "hello", "hi", "hey", "开始", "start"}
	simpleFarewells = []string{"再见", "拜拜", "谢谢", "谢谢你", "goodbye", "bye", "thanks", "thank you"}
)

// DetectIntent classifies a user message into one of the recognized
// intents. Greetings and farewells are matched locally; everything else is
// classified by the model and gated by the configured confidence floor.
func (c *Client) DetectIntent(ctx context.Context, text string) (Intent, error) {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	for _, g := range simpleGreetings {
		if trimmed == g {
			return Intent{Primary: "greeting", Confidence: 0.98}, nil
		}
	}
	for _, f := range simpleFarewells {
		if trimmed == f {
			primary := "farewell"
			if strings.Contains(trimmed, "谢") || strings.Contains(trimmed, "thank") {
				primary = "gratitude"
			}
			return Intent{Primary: primary, Confidence: 0.98}, nil
		}
	}

	var labels []string
	for id, zh := range intentTypes {
		labels = append(labels, fmt.Sprintf("%s(%s)", id, zh))
	}
	systemPrompt := "你是一个医疗对话意图分析助手。请判断用户输入的主要意图，可能的意图类型包括：" +
		strings.Join(labels, "、") +
		"。请只返回JSON，包含 primary_intent 和 confidence（0-1的浮点数）两个字段，不要解释。"

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("用户输入: " + text),
		},
		MaxCompletionTokens: openai.Int(64),
	})
	if err != nil {
		slog.Error("genai.DetectIntent: completion request failed", "error", err)
		return Intent{Primary: IntentOther}, fmt.Errorf("failed to classify intent: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Intent{Primary: IntentOther}, ErrNoChoicesReturned
	}

	return c.parseIntent(resp.Choices[0].Message.Content), nil
}

// parseIntent extracts the classification from the model output, tolerating
// surrounding prose, and applies the confidence floor.
func (c *Client) parseIntent(raw string) Intent {
	primary := gjson.Get(raw, "primary_intent").String()
	confidence := gjson.Get(raw, "confidence").Float()

	if _, known := intentTypes[primary]; !known {
		slog.Debug("genai.parseIntent: unknown intent label", "label", primary)
		return Intent{Primary: IntentOther, Confidence: confidence}
	}
	if confidence < c.minConfidence {
		slog.Debug("genai.parseIntent: below confidence floor", "intent", primary, "confidence", confidence, "floor", c.minConfidence)
		return Intent{Primary: IntentOther, Confidence: confidence}
	}
	return Intent{Primary: primary, Confidence: confidence}
}
