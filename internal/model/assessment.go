package model

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentStatus string

const (
	AssessmentDraft     AssessmentStatus = "draft"
	AssessmentPublished AssessmentStatus = "published"
	AssessmentClosed    AssessmentStatus = "closed"
)

type Assessment struct {
	ID              uint             `gorm:"primarykey" json:"id"`
	Title           string           `json:"title" gorm:"not null"`
	Instructions    string           `json:"instructions,omitempty" gorm:"type:text"`
	StartAt         time.Time        `json:"start_at" gorm:"not null"`
	EndAt           time.Time        `json:"end_at" gorm:"not null"`
	DurationMinutes int              `json:"duration_minutes" gorm:"not null"`
	PassingScore    float64          `json:"passing_score" gorm:"not null"`
	TotalPoints     float64          `json:"total_points" gorm:"not null"`
	Status          AssessmentStatus `json:"status" gorm:"type:varchar(16);default:'draft';index"`
	CreatedBy       uint             `json:"created_by" gorm:"index"`
	// LastCommitKey holds the idempotency key of the most recently applied
	// question batch, so a retried commit cannot duplicate questions.
	LastCommitKey string         `json:"-" gorm:"size:64"`
	Questions     []Question     `json:"questions,omitempty" gorm:"foreignKey:AssessmentID"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// OpenAt reports whether the scheduled window contains t.
func (a *Assessment) OpenAt(t time.Time) bool {
	return !t.Before(a.StartAt) && !t.After(a.EndAt)
}
