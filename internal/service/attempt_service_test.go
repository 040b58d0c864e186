package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "athene.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&model.Assessment{}, &model.Question{}, &model.Option{}, &model.Attempt{}, &model.AnswerRecord{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestAttemptService(t *testing.T) (AttemptService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewAttemptService(
		repository.NewAssessmentRepository(db),
		repository.NewQuestionRepository(db),
		repository.NewAttemptRepository(db),
		repository.NewAnswerRepository(db),
		NewGradingService(),
		nil,
		db,
	)
	return svc, db
}

// seedPublishedAssessment stores an open 15-point assessment with one
// question of each type, 5 points apiece.
func seedPublishedAssessment(t *testing.T, db *gorm.DB) *model.Assessment {
	t.Helper()
	now := time.Now()
	assessment := &model.Assessment{
		Title:           "Biology Midterm",
		StartAt:         now.Add(-time.Hour),
		EndAt:           now.Add(time.Hour),
		DurationMinutes: 30,
		PassingScore:    8,
		TotalPoints:     15,
		Status:          model.AssessmentPublished,
		CreatedBy:       1,
	}
	if err := db.Create(assessment).Error; err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	questions := []model.Question{
		{
			AssessmentID: assessment.ID, Text: "Which option is second?", Type: model.MultipleChoice,
			CorrectAnswer: "B", Points: 5, Position: 1,
			Options: []model.Option{{Label: "A", Text: "first"}, {Label: "B", Text: "second"}},
		},
		{
			AssessmentID: assessment.ID, Text: "The cell membrane is selectively permeable.",
			Type: model.TrueFalse, CorrectAnswer: "True", Points: 5, Position: 2,
		},
		{
			AssessmentID: assessment.ID, Text: "Name the powerhouse of the cell.",
			Type: model.Identification, CorrectAnswer: "Mitochondria", Points: 5, Position: 3,
		},
	}
	for i := range questions {
		if err := db.Create(&questions[i]).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
	return assessment
}

func TestSubmitGradesEveryAuthoredQuestion(t *testing.T) {
	svc, db := newTestAttemptService(t)
	assessment := seedPublishedAssessment(t, db)

	started, err := svc.Start(assessment.ID, 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	qs := started.Assessment.Questions
	if len(qs) != 3 {
		t.Fatalf("loaded %d questions, want 3", len(qs))
	}

	// Two correct answers, the identification question left unanswered.
	score, err := svc.Submit(started.Attempt.ID, []dto.SubmittedAnswerDTO{
		{QuestionID: qs[0].ID, Value: "B"},
		{QuestionID: qs[1].ID, Value: "true"},
	}, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if score.Score != 10 || score.TotalPoints != 15 {
		t.Fatalf("score = %v/%v, want 10/15", score.Score, score.TotalPoints)
	}
	if score.Percentage != 66.67 {
		t.Fatalf("percentage = %v, want 66.67", score.Percentage)
	}
	if score.Status != string(model.AttemptGraded) {
		t.Fatalf("status = %q, want graded", score.Status)
	}

	var records []model.AnswerRecord
	if err := db.Where("attempt_id = ?", started.Attempt.ID).Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("recorded %d answers, want one per authored question", len(records))
	}
	for _, rec := range records {
		if rec.QuestionID == qs[2].ID {
			if rec.IsCorrect || rec.GivenAnswer != "" {
				t.Fatalf("unanswered question recorded as %+v, want incorrect with empty answer", rec)
			}
		}
	}
}

func TestDuplicateSubmitIsAbsorbed(t *testing.T) {
	svc, db := newTestAttemptService(t)
	assessment := seedPublishedAssessment(t, db)

	started, err := svc.Start(assessment.ID, 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	qs := started.Assessment.Questions
	answers := []dto.SubmittedAnswerDTO{{QuestionID: qs[0].ID, Value: "B"}}

	first, err := svc.Submit(started.Attempt.ID, answers, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := svc.Submit(started.Attempt.ID, answers, true)
	if err != nil {
		t.Fatalf("duplicate Submit: %v", err)
	}

	if first.Score != second.Score || first.TotalPoints != second.TotalPoints {
		t.Fatalf("duplicate submit changed the score: %+v vs %+v", first, second)
	}
	if first.Status != second.Status {
		t.Fatalf("status flickered between submits: %q vs %q", first.Status, second.Status)
	}

	var count int64
	if err := db.Model(&model.AnswerRecord{}).Where("attempt_id = ?", started.Attempt.ID).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 3 {
		t.Fatalf("duplicate submit left %d answer records, want 3", count)
	}
}

func TestResultIsStableOrderedAndRevealsOnlyIncorrect(t *testing.T) {
	svc, db := newTestAttemptService(t)
	assessment := seedPublishedAssessment(t, db)

	started, err := svc.Start(assessment.ID, 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	qs := started.Assessment.Questions

	// Correct, incorrect, unanswered.
	_, err = svc.Submit(started.Attempt.ID, []dto.SubmittedAnswerDTO{
		{QuestionID: qs[0].ID, Value: "B"},
		{QuestionID: qs[1].ID, Value: "False"},
	}, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	first, err := svc.Result(started.Attempt.ID, 3)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	second, err := svc.Result(started.Attempt.ID, 3)
	if err != nil {
		t.Fatalf("repeat Result: %v", err)
	}
	if first.Score != second.Score || first.TotalPoints != second.TotalPoints || first.Percentage != second.Percentage {
		t.Fatalf("repeated result fetch differed: %+v vs %+v", first, second)
	}

	if len(first.Answers) != 3 {
		t.Fatalf("result carries %d answers, want 3", len(first.Answers))
	}
	for i, entry := range first.Answers {
		if entry.QuestionID != qs[i].ID {
			t.Fatalf("answers out of authored order: got %d at index %d, want %d", entry.QuestionID, i, qs[i].ID)
		}
	}

	if !first.Answers[0].IsCorrect || first.Answers[0].CorrectAnswer != nil {
		t.Fatalf("correct answer entry = %+v, want correct with no reveal", first.Answers[0])
	}
	if first.Answers[1].IsCorrect || first.Answers[1].CorrectAnswer == nil || *first.Answers[1].CorrectAnswer != "True" {
		t.Fatalf("incorrect entry = %+v, want reveal of True", first.Answers[1])
	}
	if first.Answers[2].Selected != "" || first.Answers[2].CorrectAnswer == nil || *first.Answers[2].CorrectAnswer != "Mitochondria" {
		t.Fatalf("unanswered entry = %+v, want empty selection with reveal", first.Answers[2])
	}

	if first.Score != 5 || first.Passed {
		t.Fatalf("result = %v passed=%v, want 5 points and failed", first.Score, first.Passed)
	}

	if _, err := svc.Result(started.Attempt.ID, 4); !errors.Is(err, ErrNotAttemptOwner) {
		t.Fatalf("foreign result fetch = %v, want ErrNotAttemptOwner", err)
	}
}

// staleAttemptRepo simulates a pre-check that misses an attempt a
// concurrent start just inserted.
type staleAttemptRepo struct {
	repository.AttemptRepository
	stale int
}

func (r *staleAttemptRepo) FindByAssessmentAndStudent(assessmentID, studentID uint) (*model.Attempt, error) {
	if r.stale > 0 {
		r.stale--
		return nil, nil
	}
	return r.AttemptRepository.FindByAssessmentAndStudent(assessmentID, studentID)
}

func TestStartRecoversWhenCreateLosesRace(t *testing.T) {
	db := newTestDB(t)
	assessment := seedPublishedAssessment(t, db)
	attemptRepo := repository.NewAttemptRepository(db)

	existing := &model.Attempt{
		AssessmentID: assessment.ID,
		StudentID:    3,
		Status:       model.AttemptInProgress,
		StartedAt:    time.Now(),
	}
	if err := attemptRepo.Create(existing); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	svc := NewAttemptService(
		repository.NewAssessmentRepository(db),
		repository.NewQuestionRepository(db),
		&staleAttemptRepo{AttemptRepository: attemptRepo, stale: 1},
		repository.NewAnswerRepository(db),
		NewGradingService(),
		nil,
		db,
	)

	started, err := svc.Start(assessment.ID, 3)
	if err != nil {
		t.Fatalf("raced Start: %v", err)
	}
	if !started.Resumed || started.Attempt.ID != existing.ID {
		t.Fatalf("raced start = %+v, want resume of attempt %d", started, existing.ID)
	}
}

func TestStartRacedAgainstFinishedAttemptConflicts(t *testing.T) {
	db := newTestDB(t)
	assessment := seedPublishedAssessment(t, db)
	attemptRepo := repository.NewAttemptRepository(db)

	score := 10.0
	total := 15.0
	now := time.Now()
	finished := &model.Attempt{
		AssessmentID: assessment.ID,
		StudentID:    3,
		Status:       model.AttemptGraded,
		StartedAt:    now.Add(-time.Hour),
		SubmittedAt:  &now,
		Score:        &score,
		TotalPoints:  &total,
	}
	if err := attemptRepo.Create(finished); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	svc := NewAttemptService(
		repository.NewAssessmentRepository(db),
		repository.NewQuestionRepository(db),
		&staleAttemptRepo{AttemptRepository: attemptRepo, stale: 1},
		repository.NewAnswerRepository(db),
		NewGradingService(),
		nil,
		db,
	)

	if _, err := svc.Start(assessment.ID, 3); !IsConflict(err) {
		t.Fatalf("raced start against finished attempt = %v, want ConflictError", err)
	}
}
