package service

import (
	"math"
	"strings"

	"github.com/htvu/Athene/internal/model"
)

// PassThresholdPercent is the fixed pass/fail cue used by the result view.
// Deliberately independent of the authored passing_score.
const PassThresholdPercent = 50.0

type GradingService interface {
	IsCorrect(question *model.Question, given string) bool
	Percentage(score, totalPoints float64) float64
	Passed(percentage float64) bool
}

type gradingService struct{}

func NewGradingService() GradingService {
	return &gradingService{}
}

// IsCorrect resolves one answer against its question. Multiple choice
// matches the selected option label exactly; true/false and identification
// tolerate case and surrounding whitespace.
func (s *gradingService) IsCorrect(question *model.Question, given string) bool {
	if given == "" {
		return false
	}
	switch question.Type {
	case model.MultipleChoice:
		return given == question.CorrectAnswer
	case model.TrueFalse, model.Identification:
		return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(question.CorrectAnswer))
	default:
		return false
	}
}

// Percentage returns score/total as a percentage rounded to 2 decimals.
func (s *gradingService) Percentage(score, totalPoints float64) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return math.Round(score/totalPoints*100*100) / 100
}

func (s *gradingService) Passed(percentage float64) bool {
	return percentage >= PassThresholdPercent
}
