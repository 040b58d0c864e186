package dto

import "time"

// AssessmentSummaryDTO lists an assessment for a learner, with enough
// attempt context to decide between offering "Start" and "View Result".
type AssessmentSummaryDTO struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalPoints     float64   `json:"total_points"`
	QuestionCount   int       `json:"question_count"`
	AttemptID       *uint     `json:"attempt_id,omitempty"`
	AttemptStatus   string    `json:"attempt_status,omitempty"`
}

// OptionViewDTO is a learner-facing option; no correctness marker.
type OptionViewDTO struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuestionViewDTO is a learner-facing question with the correct answer
// stripped.
type QuestionViewDTO struct {
	ID       uint            `json:"id"`
	Text     string          `json:"text"`
	Type     string          `json:"type"`
	Options  []OptionViewDTO `json:"options,omitempty"`
	Points   float64         `json:"points"`
	Position int             `json:"position"`
}

type AssessmentDetailDTO struct {
	ID              uint              `json:"id"`
	Title           string            `json:"title"`
	Instructions    string            `json:"instructions,omitempty"`
	DurationMinutes int               `json:"duration_minutes"`
	TotalPoints     float64           `json:"total_points"`
	Questions       []QuestionViewDTO `json:"questions"`
}

type StartAttemptResponseDTO struct {
	AttemptID        uint      `json:"attempt_id"`
	AssessmentID     uint      `json:"assessment_id"`
	StartedAt        time.Time `json:"started_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Resumed          bool      `json:"resumed"`
}

type RecordAnswerRequest struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	Value      string `json:"value" binding:"required"`
}

// SubmittedAnswerDTO is one serialized entry of the answer buffer, in
// question order.
type SubmittedAnswerDTO struct {
	QuestionID uint   `json:"question_id"`
	Value      string `json:"value"`
}

type VisibilityEventRequest struct {
	Hidden bool `json:"hidden"`
}

type VisibilityResponseDTO struct {
	ViolationCount int  `json:"violation_count"`
	Warned         bool `json:"warned"`
	Terminated     bool `json:"terminated"`
}

// AttemptScoreDTO is the ephemeral summary returned directly from a submit,
// usable before the canonical result is fetched.
type AttemptScoreDTO struct {
	AttemptID   uint    `json:"attempt_id"`
	Score       float64 `json:"score"`
	TotalPoints float64 `json:"total_points"`
	Percentage  float64 `json:"percentage"`
	Status      string  `json:"status"`
}

type AnswerResultDTO struct {
	QuestionID   uint    `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Selected     string  `json:"selected"`
	IsCorrect    bool    `json:"is_correct"`
	// CorrectAnswer is revealed only when the answer is incorrect.
	CorrectAnswer *string `json:"correct_answer,omitempty"`
	Feedback      string  `json:"feedback,omitempty"`
}

type ResultDTO struct {
	AttemptID       uint              `json:"attempt_id"`
	AssessmentID    uint              `json:"assessment_id"`
	AssessmentTitle string            `json:"assessment_title"`
	Status          string            `json:"status"`
	Score           float64           `json:"score"`
	TotalPoints     float64           `json:"total_points"`
	Percentage      float64           `json:"percentage"`
	Passed          bool              `json:"passed"`
	Answers         []AnswerResultDTO `json:"answers"`
}

type AttemptSummaryDTO struct {
	ID           uint       `json:"id"`
	AssessmentID uint       `json:"assessment_id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	Score        *float64   `json:"score,omitempty"`
	TotalPoints  *float64   `json:"total_points,omitempty"`
}
