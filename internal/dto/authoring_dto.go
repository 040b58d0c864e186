package dto

import "time"

// AssessmentMetadataDTO carries wizard Step 1 fields. Validation is done in
// the wizard so specific invalid fields can be reported, not just binding
// failures.
type AssessmentMetadataDTO struct {
	Title           string    `json:"title"`
	Instructions    string    `json:"instructions,omitempty"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
	PassingScore    float64   `json:"passing_score"`
	TotalPoints     float64   `json:"total_points"`
}

// OptionDTO is one choice of a staged multiple_choice question.
type OptionDTO struct {
	Label string `json:"label" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

// StagedQuestionDTO is a wizard Step 2 question draft, held locally until
// the batch commit.
type StagedQuestionDTO struct {
	Text          string      `json:"text"`
	Type          string      `json:"type" binding:"required,oneof=multiple_choice true_false identification"`
	Options       []OptionDTO `json:"options,omitempty"`
	CorrectAnswer string      `json:"correct_answer"`
	Points        float64     `json:"points"`
}

// WizardStateDTO exposes a wizard's resumable state.
type WizardStateDTO struct {
	WizardID     string                `json:"wizard_id"`
	Step         string                `json:"step"`
	AssessmentID *uint                 `json:"assessment_id,omitempty"`
	Metadata     AssessmentMetadataDTO `json:"metadata"`
	Staged       []StagedQuestionDTO   `json:"staged,omitempty"`
	Committed    bool                  `json:"committed"`
}

// BeginWizardRequest starts a fresh wizard, or re-enters one for an
// existing assessment when AssessmentID is set.
type BeginWizardRequest struct {
	AssessmentID *uint `json:"assessment_id,omitempty"`
}

// CommitQuestionsRequest carries the client-generated idempotency key; the
// wizard generates one when the client omits it and reuses it on retry.
type CommitQuestionsRequest struct {
	CommitKey string `json:"commit_key,omitempty"`
}

type QuestionResponseDTO struct {
	ID            uint        `json:"id"`
	AssessmentID  uint        `json:"assessment_id"`
	Text          string      `json:"text"`
	Type          string      `json:"type"`
	Options       []OptionDTO `json:"options,omitempty"`
	CorrectAnswer string      `json:"correct_answer,omitempty"`
	Points        float64     `json:"points"`
	Position      int         `json:"position"`
}

// AssessmentResponseDTO is the authoring-side view, correct answers included.
type AssessmentResponseDTO struct {
	ID              uint                  `json:"id"`
	Title           string                `json:"title"`
	Instructions    string                `json:"instructions,omitempty"`
	StartAt         time.Time             `json:"start_at"`
	EndAt           time.Time             `json:"end_at"`
	DurationMinutes int                   `json:"duration_minutes"`
	PassingScore    float64               `json:"passing_score"`
	TotalPoints     float64               `json:"total_points"`
	Status          string                `json:"status"`
	CreatedBy       uint                  `json:"created_by"`
	Questions       []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}
