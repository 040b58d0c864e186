package wizard

import (
	"testing"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/service"
)

func TestAddNormalizesTrueFalseAnswer(t *testing.T) {
	s := NewStaging()
	err := s.Add(dto.StagedQuestionDTO{
		Text:          "The mitochondria is an organelle.",
		Type:          "true_false",
		CorrectAnswer: " true ",
		Points:        2,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.Items()[0].CorrectAnswer; got != "True" {
		t.Fatalf("normalized answer = %q, want True", got)
	}
}

func TestAddRejectsOptionsOnNonChoiceTypes(t *testing.T) {
	s := NewStaging()
	err := s.Add(dto.StagedQuestionDTO{
		Text:          "Name the capital of France.",
		Type:          "identification",
		Options:       []dto.OptionDTO{{Label: "A", Text: "Paris"}},
		CorrectAnswer: "Paris",
		Points:        2,
	})
	if !service.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatal("rejected draft must not be staged")
	}
}

func TestAddRejectsDuplicateOptionLabels(t *testing.T) {
	s := NewStaging()
	err := s.Add(dto.StagedQuestionDTO{
		Text: "Pick one",
		Type: "multiple_choice",
		Options: []dto.OptionDTO{
			{Label: "A", Text: "first"},
			{Label: "A", Text: "second"},
		},
		CorrectAnswer: "A",
		Points:        1,
	})
	if !service.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveBounds(t *testing.T) {
	s := NewStaging()
	if err := s.Add(dto.StagedQuestionDTO{Text: "q", Type: "identification", CorrectAnswer: "a", Points: 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.Remove(0); err == nil {
		t.Error("position 0 must be rejected")
	}
	if err := s.Remove(2); err == nil {
		t.Error("out-of-range position must be rejected")
	}
	if err := s.Remove(1); err != nil {
		t.Errorf("Remove(1): %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("len after remove = %d, want 0", s.Len())
	}
}

func TestPointsSum(t *testing.T) {
	s := NewStaging()
	for _, pts := range []float64{2.5, 3, 4.5} {
		if err := s.Add(dto.StagedQuestionDTO{Text: "q", Type: "identification", CorrectAnswer: "a", Points: pts}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got := s.PointsSum(); got != 10 {
		t.Fatalf("PointsSum = %v, want 10", got)
	}
}
