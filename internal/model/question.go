package model

import (
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	Identification QuestionType = "identification"
)

type Question struct {
	ID           uint         `gorm:"primarykey" json:"id"`
	AssessmentID uint         `json:"assessment_id" gorm:"not null;index"`
	Text         string       `json:"text" gorm:"type:text;not null"`
	Type         QuestionType `json:"type" gorm:"type:varchar(24);not null"`
	// CorrectAnswer is an option label for multiple_choice, "True"/"False"
	// for true_false, free text for identification. Never sent to learners
	// while an attempt is in progress.
	CorrectAnswer string         `json:"correct_answer,omitempty" gorm:"not null"`
	Points        float64        `json:"points" gorm:"not null"`
	Position      int            `json:"position" gorm:"not null"`
	Options       []Option       `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

type Option struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Label      string `json:"label" gorm:"size:8;not null"`
	Text       string `json:"text" gorm:"type:text;not null"`
}
