package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func newTestAssessmentService(t *testing.T) (AssessmentService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewAssessmentService(repository.NewAssessmentRepository(db), repository.NewAttemptRepository(db))
	return svc, db
}

func testMetadata(totalPoints float64) dto.AssessmentMetadataDTO {
	now := time.Now()
	return dto.AssessmentMetadataDTO{
		Title:           "Chemistry Quiz",
		StartAt:         now.Add(-time.Hour),
		EndAt:           now.Add(time.Hour),
		DurationMinutes: 20,
		PassingScore:    5,
		TotalPoints:     totalPoints,
	}
}

func TestCommittedQuestionsRoundTripInStagedOrder(t *testing.T) {
	svc, _ := newTestAssessmentService(t)

	created, err := svc.CreateOrUpdateMetadata(nil, 1, testMetadata(15))
	if err != nil {
		t.Fatalf("CreateOrUpdateMetadata: %v", err)
	}

	staged := []dto.StagedQuestionDTO{
		{
			Text: "Which is a noble gas?", Type: "multiple_choice", CorrectAnswer: "B", Points: 5,
			Options: []dto.OptionDTO{{Label: "A", Text: "Oxygen"}, {Label: "B", Text: "Neon"}},
		},
		{Text: "Water boils at 100C at sea level.", Type: "true_false", CorrectAnswer: "True", Points: 5},
		{Text: "Chemical symbol for gold?", Type: "identification", CorrectAnswer: "Au", Points: 5},
	}
	if err := svc.ReplaceQuestions(created.ID, staged, "commit-1"); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}

	fetched, err := svc.GetWithQuestions(created.ID)
	if err != nil {
		t.Fatalf("GetWithQuestions: %v", err)
	}
	if len(fetched.Questions) != 3 {
		t.Fatalf("fetched %d questions, want 3", len(fetched.Questions))
	}
	for i, q := range fetched.Questions {
		if q.Position != i+1 {
			t.Fatalf("question %d has position %d, want %d", i, q.Position, i+1)
		}
		if q.Text != staged[i].Text {
			t.Fatalf("question %d text = %q, want %q", i, q.Text, staged[i].Text)
		}
		if q.CorrectAnswer != staged[i].CorrectAnswer {
			t.Fatalf("question %d correct answer = %q, want %q", i, q.CorrectAnswer, staged[i].CorrectAnswer)
		}
	}
	opts := fetched.Questions[0].Options
	if len(opts) != 2 || opts[0].Label != "A" || opts[1].Text != "Neon" {
		t.Fatalf("options did not survive the round trip: %+v", opts)
	}
}

func TestReplaceQuestionsRepeatedCommitKeyIsNoOp(t *testing.T) {
	svc, _ := newTestAssessmentService(t)

	created, err := svc.CreateOrUpdateMetadata(nil, 1, testMetadata(5))
	if err != nil {
		t.Fatalf("CreateOrUpdateMetadata: %v", err)
	}
	if err := svc.ReplaceQuestions(created.ID, []dto.StagedQuestionDTO{
		{Text: "Chemical symbol for gold?", Type: "identification", CorrectAnswer: "Au", Points: 5},
	}, "commit-1"); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	before, err := svc.GetWithQuestions(created.ID)
	if err != nil {
		t.Fatalf("GetWithQuestions: %v", err)
	}

	// A retry with the same key must not rewrite the batch.
	if err := svc.ReplaceQuestions(created.ID, []dto.StagedQuestionDTO{
		{Text: "Chemical symbol for silver?", Type: "identification", CorrectAnswer: "Ag", Points: 5},
	}, "commit-1"); err != nil {
		t.Fatalf("replayed ReplaceQuestions: %v", err)
	}
	after, err := svc.GetWithQuestions(created.ID)
	if err != nil {
		t.Fatalf("GetWithQuestions: %v", err)
	}
	if len(after.Questions) != 1 || after.Questions[0].ID != before.Questions[0].ID || after.Questions[0].Text != "Chemical symbol for gold?" {
		t.Fatalf("replayed commit rewrote the batch: %+v", after.Questions)
	}

	// A fresh key does rewrite.
	if err := svc.ReplaceQuestions(created.ID, []dto.StagedQuestionDTO{
		{Text: "Chemical symbol for silver?", Type: "identification", CorrectAnswer: "Ag", Points: 5},
	}, "commit-2"); err != nil {
		t.Fatalf("second ReplaceQuestions: %v", err)
	}
	rewritten, err := svc.GetWithQuestions(created.ID)
	if err != nil {
		t.Fatalf("GetWithQuestions: %v", err)
	}
	if len(rewritten.Questions) != 1 || rewritten.Questions[0].Text != "Chemical symbol for silver?" {
		t.Fatalf("fresh commit key did not replace the batch: %+v", rewritten.Questions)
	}
}

func TestUpdateMetadataRejectsForeignInstructor(t *testing.T) {
	svc, _ := newTestAssessmentService(t)

	created, err := svc.CreateOrUpdateMetadata(nil, 1, testMetadata(15))
	if err != nil {
		t.Fatalf("CreateOrUpdateMetadata: %v", err)
	}

	if _, err := svc.CreateOrUpdateMetadata(&created.ID, 2, testMetadata(20)); !errors.Is(err, ErrNotAssessmentOwner) {
		t.Fatalf("update by non-owner = %v, want ErrNotAssessmentOwner", err)
	}

	unchanged, err := svc.GetWithQuestions(created.ID)
	if err != nil {
		t.Fatalf("GetWithQuestions: %v", err)
	}
	if unchanged.TotalPoints != 15 {
		t.Fatalf("non-owner update changed total points to %v", unchanged.TotalPoints)
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestPointsMismatchWarningToleratesFloatDrift(t *testing.T) {
	svc, _ := newTestAssessmentService(t)

	created, err := svc.CreateOrUpdateMetadata(nil, 1, testMetadata(0.3))
	if err != nil {
		t.Fatalf("CreateOrUpdateMetadata: %v", err)
	}

	// 0.1+0.1+0.1 != 0.3 in float64; the sum must still be treated as equal.
	buf := captureLog(t)
	staged := []dto.StagedQuestionDTO{
		{Text: "First?", Type: "identification", CorrectAnswer: "a", Points: 0.1},
		{Text: "Second?", Type: "identification", CorrectAnswer: "b", Points: 0.1},
		{Text: "Third?", Type: "identification", CorrectAnswer: "c", Points: 0.1},
	}
	if err := svc.ReplaceQuestions(created.ID, staged, "commit-1"); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	if strings.Contains(buf.String(), "total_points") {
		t.Fatalf("fractional sum tripped the mismatch warning: %s", buf.String())
	}

	buf.Reset()
	if err := svc.ReplaceQuestions(created.ID, staged[:2], "commit-2"); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	if !strings.Contains(buf.String(), "total_points") {
		t.Fatalf("genuine mismatch did not warn: %s", buf.String())
	}
}
