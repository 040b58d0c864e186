package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/repository"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StartedAttempt carries everything a live session needs at start.
type StartedAttempt struct {
	Attempt    *model.Attempt
	Assessment *model.Assessment
	Resumed    bool
}

// AttemptService owns the persisted Attempt lifecycle: start with a
// per-(assessment, student) uniqueness guarantee, an idempotent terminal
// submit that grades in one transaction, and result retrieval.
type AttemptService interface {
	Start(assessmentID, studentID uint) (*StartedAttempt, error)
	Submit(attemptID uint, answers []dto.SubmittedAnswerDTO, auto bool) (*dto.AttemptScoreDTO, error)
	RecordViolation(attemptID uint, count int) error
	Result(attemptID, studentID uint) (*dto.ResultDTO, error)
	ListByStudent(studentID uint) ([]dto.AttemptSummaryDTO, error)
}

type attemptService struct {
	assessmentRepo repository.AssessmentRepository
	questionRepo   repository.QuestionRepository
	attemptRepo    repository.AttemptRepository
	answerRepo     repository.AnswerRepository
	grading        GradingService
	feedback       FeedbackService
	db             *gorm.DB
}

func NewAttemptService(
	assessmentRepo repository.AssessmentRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.AttemptRepository,
	answerRepo repository.AnswerRepository,
	grading GradingService,
	feedback FeedbackService,
	db *gorm.DB,
) AttemptService {
	return &attemptService{
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
		attemptRepo:    attemptRepo,
		answerRepo:     answerRepo,
		grading:        grading,
		feedback:       feedback,
		db:             db,
	}
}

func (s *attemptService) Start(assessmentID, studentID uint) (*StartedAttempt, error) {
	assessment, err := s.assessmentRepo.FindByIDWithQuestions(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("error loading assessment %d: %w", assessmentID, err)
	}
	if assessment.Status != model.AssessmentPublished {
		return nil, ErrAssessmentNotOpen
	}
	if !assessment.OpenAt(time.Now()) {
		return nil, ErrAssessmentNotOpen
	}

	existing, err := s.attemptRepo.FindByAssessmentAndStudent(assessmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("error checking existing attempt: %w", err)
	}
	if existing != nil {
		if existing.Status == model.AttemptInProgress {
			// Same learner starting again mid-attempt is absorbed as a resume.
			log.Info().Uint("attemptID", existing.ID).Uint("studentID", studentID).Msg("Resuming in-progress attempt")
			return &StartedAttempt{Attempt: existing, Assessment: assessment, Resumed: true}, nil
		}
		return nil, NewConflictError("attempt", "assessment already attempted by this student")
	}

	attempt := &model.Attempt{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Status:       model.AttemptInProgress,
		StartedAt:    time.Now(),
	}
	if err := s.attemptRepo.Create(attempt); err != nil {
		// A concurrent Start can win between the pre-check and the insert;
		// the unique index turns the loser's create into an error. Re-check
		// and fold into the resume/conflict path instead of surfacing it.
		existing, findErr := s.attemptRepo.FindByAssessmentAndStudent(assessmentID, studentID)
		if findErr == nil && existing != nil {
			if existing.Status == model.AttemptInProgress {
				log.Info().Uint("attemptID", existing.ID).Uint("studentID", studentID).Msg("Resuming attempt created by a concurrent start")
				return &StartedAttempt{Attempt: existing, Assessment: assessment, Resumed: true}, nil
			}
			return nil, NewConflictError("attempt", "assessment already attempted by this student")
		}
		log.Error().Err(err).Uint("assessmentID", assessmentID).Uint("studentID", studentID).Msg("Failed to create attempt")
		return nil, fmt.Errorf("database error starting attempt: %w", err)
	}
	return &StartedAttempt{Attempt: attempt, Assessment: assessment}, nil
}

// Submit is the terminal write. A duplicate submit against an already
// terminal attempt is absorbed: the stored score is returned instead of an
// error, so retries after a lost response are safe.
func (s *attemptService) Submit(attemptID uint, answers []dto.SubmittedAnswerDTO, auto bool) (*dto.AttemptScoreDTO, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("error loading attempt %d: %w", attemptID, err)
	}
	if attempt.Status.Terminal() {
		return s.storedScore(attempt)
	}

	assessment, err := s.assessmentRepo.FindByID(attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("error loading assessment %d: %w", attempt.AssessmentID, err)
	}
	questions, err := s.questionRepo.FindByAssessmentID(attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("error loading questions for assessment %d: %w", attempt.AssessmentID, err)
	}

	given := make(map[uint]string, len(answers))
	for _, a := range answers {
		given[a.QuestionID] = a.Value
	}

	terminal := model.AttemptSubmitted
	if auto {
		terminal = model.AttemptAutoSubmitted
	}

	score := 0.0
	var records []model.AnswerRecord

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var current model.Attempt
		if err := tx.First(&current, attemptID).Error; err != nil {
			return err
		}
		if current.Status.Terminal() {
			// A concurrent submit won the race; caller gets the stored result.
			return nil
		}

		now := time.Now()
		current.Status = terminal
		current.SubmittedAt = &now
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to mark attempt terminal: %w", err)
		}

		// Grade every authored question; unanswered ones are recorded
		// incorrect with an empty given answer.
		for _, q := range questions {
			value := given[q.ID]
			record := model.AnswerRecord{
				AttemptID:   attemptID,
				QuestionID:  q.ID,
				GivenAnswer: value,
				IsCorrect:   s.grading.IsCorrect(&q, value),
			}
			if record.IsCorrect {
				score += q.Points
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to record answer for question %d: %w", q.ID, err)
			}
			records = append(records, record)
		}

		total := assessment.TotalPoints
		current.Status = model.AttemptGraded
		current.Score = &score
		current.TotalPoints = &total
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to store grade: %w", err)
		}
		*attempt = current
		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Bool("auto", auto).Msg("Submit transaction failed")
		return nil, err
	}
	if attempt.Score == nil {
		// Lost the race inside the transaction; report the stored outcome.
		reloaded, err := s.attemptRepo.FindByID(attemptID)
		if err != nil {
			return nil, fmt.Errorf("error reloading attempt %d: %w", attemptID, err)
		}
		return s.storedScore(reloaded)
	}

	s.attachFeedback(questions, records)

	log.Info().Uint("attemptID", attemptID).Float64("score", score).Bool("auto", auto).Msg("Attempt graded")
	// attempt now carries the graded row; reporting its status keeps the
	// winning call and any absorbed duplicate on the same label.
	return &dto.AttemptScoreDTO{
		AttemptID:   attemptID,
		Score:       score,
		TotalPoints: assessment.TotalPoints,
		Percentage:  s.grading.Percentage(score, assessment.TotalPoints),
		Status:      string(attempt.Status),
	}, nil
}

func (s *attemptService) storedScore(attempt *model.Attempt) (*dto.AttemptScoreDTO, error) {
	if attempt.Score == nil || attempt.TotalPoints == nil {
		return nil, NewConflictError("attempt", "submission already in progress")
	}
	return &dto.AttemptScoreDTO{
		AttemptID:   attempt.ID,
		Score:       *attempt.Score,
		TotalPoints: *attempt.TotalPoints,
		Percentage:  s.grading.Percentage(*attempt.Score, *attempt.TotalPoints),
		Status:      string(attempt.Status),
	}, nil
}

// attachFeedback asks the AI service to comment on incorrect identification
// answers. Failures are logged and dropped; the grade already stands.
func (s *attemptService) attachFeedback(questions []model.Question, records []model.AnswerRecord) {
	if s.feedback == nil || !s.feedback.Enabled() {
		return
	}
	questionByID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		questionByID[questions[i].ID] = &questions[i]
	}
	for i := range records {
		record := &records[i]
		question := questionByID[record.QuestionID]
		if question == nil || question.Type != model.Identification || record.IsCorrect || record.GivenAnswer == "" {
			continue
		}
		text, err := s.feedback.FeedbackForAnswer(question, record.GivenAnswer)
		if err != nil {
			log.Warn().Err(err).Uint("questionID", record.QuestionID).Msg("Feedback generation failed")
			continue
		}
		record.Feedback = text
		if err := s.answerRepo.Update(record); err != nil {
			log.Warn().Err(err).Uint("answerID", record.ID).Msg("Failed to store answer feedback")
		}
	}
}

// RecordViolation stores the running integrity-violation count. The count
// only grows; a stale lower value is ignored.
func (s *attemptService) RecordViolation(attemptID uint, count int) error {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("error loading attempt %d: %w", attemptID, err)
	}
	if count <= attempt.ViolationCount {
		return nil
	}
	attempt.ViolationCount = count
	if err := s.attemptRepo.Update(attempt); err != nil {
		return fmt.Errorf("database error recording violation: %w", err)
	}
	return nil
}

func (s *attemptService) Result(attemptID, studentID uint) (*dto.ResultDTO, error) {
	attempt, err := s.attemptRepo.FindByIDWithDetails(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("error loading attempt %d: %w", attemptID, err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	if attempt.Status != model.AttemptGraded || attempt.Score == nil || attempt.TotalPoints == nil {
		return nil, ErrResultNotReady
	}

	percentage := s.grading.Percentage(*attempt.Score, *attempt.TotalPoints)
	resp := dto.ResultDTO{
		AttemptID:       attempt.ID,
		AssessmentID:    attempt.AssessmentID,
		AssessmentTitle: attempt.Assessment.Title,
		Status:          string(attempt.Status),
		Score:           *attempt.Score,
		TotalPoints:     *attempt.TotalPoints,
		Percentage:      percentage,
		Passed:          s.grading.Passed(percentage),
	}

	// Answers come back in authored question order.
	byQuestion := make(map[uint]model.AnswerRecord, len(attempt.Answers))
	for _, rec := range attempt.Answers {
		byQuestion[rec.QuestionID] = rec
	}
	questions := make([]model.Question, len(attempt.Answers))
	for i, rec := range attempt.Answers {
		questions[i] = rec.Question
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})
	for _, q := range questions {
		rec := byQuestion[q.ID]
		entry := dto.AnswerResultDTO{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Selected:     rec.GivenAnswer,
			IsCorrect:    rec.IsCorrect,
			Feedback:     rec.Feedback,
		}
		if !rec.IsCorrect {
			correct := q.CorrectAnswer
			entry.CorrectAnswer = &correct
		}
		resp.Answers = append(resp.Answers, entry)
	}
	return &resp, nil
}

func (s *attemptService) ListByStudent(studentID uint) ([]dto.AttemptSummaryDTO, error) {
	attempts, err := s.attemptRepo.FindAllByStudent(studentID)
	if err != nil {
		log.Error().Err(err).Uint("studentID", studentID).Msg("Failed to list attempts")
		return nil, fmt.Errorf("error fetching attempts: %w", err)
	}
	var summaries []dto.AttemptSummaryDTO
	for _, attempt := range attempts {
		var summary dto.AttemptSummaryDTO
		if err := copier.Copy(&summary, &attempt); err != nil {
			log.Warn().Err(err).Uint("attemptID", attempt.ID).Msg("Error copying attempt summary")
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
