package model

import (
	"time"
)

// AnswerRecord is the graded form of one buffered answer. IsCorrect is
// resolved server-side only.
type AnswerRecord struct {
	ID          uint     `gorm:"primarykey" json:"id"`
	AttemptID   uint     `json:"attempt_id" gorm:"not null;index"`
	QuestionID  uint     `json:"question_id" gorm:"not null;index"`
	Question    Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	GivenAnswer string   `json:"given_answer" gorm:"type:text"`
	IsCorrect   bool     `json:"is_correct"`
	// Feedback carries optional AI commentary for incorrect identification
	// answers; empty otherwise.
	Feedback  string    `json:"feedback,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
