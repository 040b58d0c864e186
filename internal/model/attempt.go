package model

import (
	"time"

	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptGraded        AttemptStatus = "graded"
)

// Terminal reports whether s is past the point of accepting answers.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted || s == AttemptGraded
}

// Attempt is one learner's single timed execution of an Assessment.
// At most one row exists per (assessment, student).
type Attempt struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	AssessmentID   uint           `json:"assessment_id" gorm:"not null;uniqueIndex:idx_attempts_assessment_student"`
	Assessment     Assessment     `json:"assessment,omitempty" gorm:"foreignKey:AssessmentID"`
	StudentID      uint           `json:"student_id" gorm:"not null;uniqueIndex:idx_attempts_assessment_student"`
	Status         AttemptStatus  `json:"status" gorm:"type:varchar(16);default:'in_progress';index"`
	StartedAt      time.Time      `json:"started_at" gorm:"not null"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	ViolationCount int            `json:"violation_count" gorm:"default:0"`
	Score          *float64       `json:"score,omitempty"`
	TotalPoints    *float64       `json:"total_points,omitempty"`
	Answers        []AnswerRecord `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
