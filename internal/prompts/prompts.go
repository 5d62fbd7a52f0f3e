// Package prompts holds the fixed prompt templates of the medical-intake
// dialogue: the per-field collection questions and the per-state generation
// templates handed to the language model.
package prompts

import (
	"fmt"
	"strings"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/models"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "你是一名专业、谨慎的医疗咨询助手。你根据患者提供的信息和检索到的医学知识给出参考性建议，" +
	"语言通俗易懂，不夸大、不做确定性诊断，并在必要时明确建议患者及时就医。"

// questions maps field identifiers to their collection question. Fields not
// listed fall back to a generic phrasing built from catalog metadata.
var questions = map[string]string{
	"age":             "请问您今年多大年纪？",
	"gender":          "请问您的性别是？",
	"medical_history": "请问您过去有没有得过什么疾病，或者做过手术？",
	"allergy":         "请问您对药物或食物有过敏史吗？",
	"medication":      "请问您目前正在服用什么药物吗？",
	"main":            "请问您目前最主要的不适症状是什么？",
	"duration":        "这种症状已经持续多久了？",
	"severity":        "症状的严重程度如何？如果用1到10分来衡量，大概是几分？",
	"pattern":         "症状是持续存在的，还是间歇性发作的？有没有什么时间规律？",
	"factors":         "有什么因素会让症状加重或缓解吗？",
	"associated":      "除了主要症状之外，还有其他不舒服的地方吗？",
	"sleep":           "请问您最近的睡眠情况怎么样？",
	"diet":            "请问您平时的饮食习惯是怎样的？",
	"exercise":        "请问您平时有运动的习惯吗？",
	"work":            "请问您的工作强度和压力大吗？",
	"smoke_drink":     "请问您平时吸烟或者喝酒吗？",
}

// Question returns the collection question for a field.
func Question(f catalog.Field) string {
	if q, ok := questions[f.ID]; ok {
		return q
	}
	return fmt.Sprintf("请问您的%s是怎样的？例如：%s。", f.ZhName, strings.Join(f.Examples, "、"))
}

// TransitionNotice prefixes the next question when the dialogue has just
// advanced to a new collection stage.
const TransitionNotice = "这一阶段的信息已经收集完毕，我们进入下一阶段。"

// Fixed user-facing messages of the dialogue manager.
const (
	TimeoutMessage  = "对话时间已超时,建议重新开始咨询。"
	MaxTurnsMessage = "已达到最大对话轮次,建议总结当前信息并考虑就医。"
	ClosureMessage  = "感谢您的咨询,祝您身体健康!"
	ApologyMessage  = "抱歉，当前无法处理您的请求。"
)

// Greeting opens a fresh conversation.
const Greeting = "您好,我是您的医疗助手。有什么可以帮您？"

// generation templates, one per output state. Placeholders are filled by
// Render: %[1]s collected info, %[2]s referral urgency.
var generationTemplates = map[models.DialogueState]string{
	models.StateDiagnosis: "请根据以下患者信息给出初步的诊断分析，说明可能的原因和需要关注的要点。\n患者信息：\n%[1]s",
	models.StateMedicalAdvice: "请根据以下患者信息给出具体的医疗建议，包括日常护理、用药注意事项和复诊建议。\n患者信息：\n%[1]s",
	models.StateReferral: "请根据以下患者信息给出转诊建议（紧急程度：%[2]s），说明建议就诊的科室和注意事项。\n患者信息：\n%[1]s",
	models.StateEducation: "请根据以下患者信息给出健康教育内容，帮助患者了解病情相关的知识和预防措施。\n患者信息：\n%[1]s",
}

// Render builds the user prompt for a generation state, combining the
// retrieved knowledge context with the formatted patient information.
// ok is false when the state has no generation template.
func Render(state models.DialogueState, knowledgeContext, formattedInfo, urgency string) (string, bool) {
	tmpl, ok := generationTemplates[state]
	if !ok {
		return "", false
	}
	if urgency == "" {
		urgency = "non_urgent"
	}
	body := fmt.Sprintf(tmpl, formattedInfo, urgency)
	if knowledgeContext != "" {
		return fmt.Sprintf("相关医学知识:\n%s\n\n用户信息:%s", knowledgeContext, body), true
	}
	return fmt.Sprintf("用户信息:%s", body), true
}
