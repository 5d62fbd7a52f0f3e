package flow

import (
	"log/slog"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/models"
)

// InitialFlow is the no-op handler of the initial state; it collects
// nothing and immediately advances to base info collection.
type InitialFlow struct{}

// NewInitialFlow creates the initial flow.
func NewInitialFlow() *InitialFlow { return &InitialFlow{} }

func (f *InitialFlow) State() models.DialogueState { return models.StateInitial }

func (f *InitialFlow) ProcessResponse(message string, c *models.StateContext) bool { return false }

func (f *InitialFlow) NextQuestion(c *models.StateContext) (string, bool) { return "", false }

func (f *InitialFlow) NextState(c *models.StateContext) models.DialogueState {
	return models.StateCollectingBaseInfo
}

// BaseInfoFlow collects age, gender and basic history. It advances to
// symptom collection once every high-importance base field is filled.
type BaseInfoFlow struct {
	collector
}

// NewBaseInfoFlow creates the base info flow over the base info catalog.
func NewBaseInfoFlow(cats *catalog.Set) *BaseInfoFlow {
	return &BaseInfoFlow{newCollector(models.StateCollectingBaseInfo, cats.BaseInfo())}
}

func (f *BaseInfoFlow) NextState(c *models.StateContext) models.DialogueState {
	if f.cat.HighComplete(c.MedicalInfo) {
		return models.StateCollectingSymptoms
	}
	return models.StateCollectingBaseInfo
}

// SymptomFlow collects the chief complaint and its details, and raises the
// emergency signal when the answers indicate a critical condition.
type SymptomFlow struct {
	collector
}

// NewSymptomFlow creates the symptom flow over the symptom catalog.
func NewSymptomFlow(cats *catalog.Set) *SymptomFlow {
	return &SymptomFlow{newCollector(models.StateCollectingSymptoms, cats.Symptom())}
}

func (f *SymptomFlow) ProcessResponse(message string, c *models.StateContext) bool {
	f.collector.ProcessResponse(message, c)

	if emergency, reason := CheckEmergency(c.MedicalInfo, message); emergency {
		slog.Info("flow.SymptomFlow: emergency detected", "reason", reason, "turn", c.TurnCount)
		return true
	}
	return false
}

func (f *SymptomFlow) NextState(c *models.StateContext) models.DialogueState {
	if emergency, _ := CheckEmergency(c.MedicalInfo, ""); emergency {
		return models.StateReferral
	}
	if f.cat.Complete(c.MedicalInfo) {
		return models.StateLifeStyle
	}
	return models.StateCollectingSymptoms
}

// LifestyleFlow collects lifestyle habits and then advances to diagnosis.
type LifestyleFlow struct {
	collector
}

// NewLifestyleFlow creates the lifestyle flow over the lifestyle catalog.
func NewLifestyleFlow(cats *catalog.Set) *LifestyleFlow {
	return &LifestyleFlow{newCollector(models.StateLifeStyle, cats.Lifestyle())}
}

func (f *LifestyleFlow) NextState(c *models.StateContext) models.DialogueState {
	if f.cat.Complete(c.MedicalInfo) {
		return models.StateDiagnosis
	}
	return models.StateLifeStyle
}

// outputFlow is the shared shape of the pure-output states: they collect
// no fields and transition unconditionally (or by severity branch).
type outputFlow struct {
	state models.DialogueState
	next  models.DialogueState
}

func (f *outputFlow) State() models.DialogueState { return f.state }

func (f *outputFlow) ProcessResponse(message string, c *models.StateContext) bool { return false }

func (f *outputFlow) NextQuestion(c *models.StateContext) (string, bool) { return "", false }

func (f *outputFlow) NextState(c *models.StateContext) models.DialogueState { return f.next }

// DiagnosisFlow produces the preliminary assessment and branches on the
// reported severity: scores of ReferralSeverityThreshold or above go to
// referral, everything else to medical advice.
type DiagnosisFlow struct {
	outputFlow
}

// NewDiagnosisFlow creates the diagnosis flow.
func NewDiagnosisFlow() *DiagnosisFlow {
	return &DiagnosisFlow{outputFlow{state: models.StateDiagnosis}}
}

func (f *DiagnosisFlow) NextState(c *models.StateContext) models.DialogueState {
	if SeverityScore(c.MedicalInfo) >= ReferralSeverityThreshold {
		return models.StateReferral
	}
	return models.StateMedicalAdvice
}

// MedicalAdviceFlow produces care suggestions and advances to education.
type MedicalAdviceFlow struct {
	outputFlow
}

// NewMedicalAdviceFlow creates the medical advice flow.
func NewMedicalAdviceFlow() *MedicalAdviceFlow {
	return &MedicalAdviceFlow{outputFlow{state: models.StateMedicalAdvice, next: models.StateEducation}}
}

// ReferralFlow produces the referral output and advances to education.
type ReferralFlow struct {
	outputFlow
}

// NewReferralFlow creates the referral flow.
func NewReferralFlow() *ReferralFlow {
	return &ReferralFlow{outputFlow{state: models.StateReferral, next: models.StateEducation}}
}

// EducationFlow produces the closing health education output and ends the
// conversation.
type EducationFlow struct {
	outputFlow
}

// NewEducationFlow creates the education flow.
func NewEducationFlow() *EducationFlow {
	return &EducationFlow{outputFlow{state: models.StateEducation, next: models.StateEnded}}
}
