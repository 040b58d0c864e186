package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/htvu/Athene/internal/dto"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/repository"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const pointsEpsilon = 1e-9

// AssessmentService is the persistence boundary behind the authoring wizard
// and the learner-facing listing.
type AssessmentService interface {
	CreateOrUpdateMetadata(assessmentID *uint, instructorID uint, meta dto.AssessmentMetadataDTO) (*dto.AssessmentResponseDTO, error)
	ReplaceQuestions(assessmentID uint, staged []dto.StagedQuestionDTO, commitKey string) error
	Publish(assessmentID uint) error
	SaveDraft(assessmentID uint) error
	GetWithQuestions(assessmentID uint) (*dto.AssessmentResponseDTO, error)
	GetForDelivery(assessmentID uint) (*dto.AssessmentDetailDTO, error)
	ListForStudent(studentID uint) ([]dto.AssessmentSummaryDTO, error)
}

type assessmentService struct {
	assessmentRepo repository.AssessmentRepository
	attemptRepo    repository.AttemptRepository
}

func NewAssessmentService(assessmentRepo repository.AssessmentRepository, attemptRepo repository.AttemptRepository) AssessmentService {
	return &assessmentService{assessmentRepo: assessmentRepo, attemptRepo: attemptRepo}
}

func (s *assessmentService) CreateOrUpdateMetadata(assessmentID *uint, instructorID uint, meta dto.AssessmentMetadataDTO) (*dto.AssessmentResponseDTO, error) {
	var assessment *model.Assessment

	if assessmentID != nil {
		existing, err := s.assessmentRepo.FindByID(*assessmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAssessmentNotFound
			}
			return nil, fmt.Errorf("error loading assessment %d: %w", *assessmentID, err)
		}
		if existing.CreatedBy != instructorID {
			return nil, ErrNotAssessmentOwner
		}
		assessment = existing
	} else {
		assessment = &model.Assessment{Status: model.AssessmentDraft, CreatedBy: instructorID}
	}

	assessment.Title = meta.Title
	assessment.Instructions = meta.Instructions
	assessment.StartAt = meta.StartAt
	assessment.EndAt = meta.EndAt
	assessment.DurationMinutes = meta.DurationMinutes
	assessment.PassingScore = meta.PassingScore
	assessment.TotalPoints = meta.TotalPoints

	var err error
	if assessment.ID == 0 {
		err = s.assessmentRepo.Create(assessment)
	} else {
		err = s.assessmentRepo.Update(assessment)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist assessment metadata")
		return nil, fmt.Errorf("database error saving assessment: %w", err)
	}

	var resp dto.AssessmentResponseDTO
	if err := copier.Copy(&resp, assessment); err != nil {
		return nil, fmt.Errorf("error preparing assessment response: %w", err)
	}
	return &resp, nil
}

func (s *assessmentService) ReplaceQuestions(assessmentID uint, staged []dto.StagedQuestionDTO, commitKey string) error {
	assessment, err := s.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("error loading assessment %d: %w", assessmentID, err)
	}

	questions := make([]model.Question, 0, len(staged))
	stagedSum := 0.0
	for i, q := range staged {
		question := model.Question{
			Text:          q.Text,
			Type:          model.QuestionType(q.Type),
			CorrectAnswer: q.CorrectAnswer,
			Points:        q.Points,
			Position:      i + 1,
		}
		for _, opt := range q.Options {
			question.Options = append(question.Options, model.Option{Label: opt.Label, Text: opt.Text})
		}
		questions = append(questions, question)
		stagedSum += q.Points
	}

	// total_points is authored independently; a mismatch with the staged sum
	// is allowed but worth noticing. Epsilon compare so fractional point
	// values summed in order don't trip the warning.
	if math.Abs(stagedSum-assessment.TotalPoints) > pointsEpsilon {
		log.Warn().Uint("assessmentID", assessmentID).
			Float64("stagedSum", stagedSum).
			Float64("totalPoints", assessment.TotalPoints).
			Msg("Staged question points do not sum to authored total_points")
	}

	if err := s.assessmentRepo.ReplaceQuestions(assessmentID, questions, commitKey); err != nil {
		log.Error().Err(err).Uint("assessmentID", assessmentID).Msg("Failed to replace question batch")
		return fmt.Errorf("database error committing questions: %w", err)
	}
	return nil
}

func (s *assessmentService) Publish(assessmentID uint) error {
	assessment, err := s.assessmentRepo.FindByIDWithQuestions(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("error loading assessment %d: %w", assessmentID, err)
	}
	if len(assessment.Questions) == 0 {
		return NewValidationError(map[string]string{"questions": "cannot publish an assessment without questions"})
	}
	if err := s.assessmentRepo.UpdateStatus(assessmentID, model.AssessmentPublished); err != nil {
		return fmt.Errorf("database error publishing assessment: %w", err)
	}
	log.Info().Uint("assessmentID", assessmentID).Msg("Assessment published")
	return nil
}

func (s *assessmentService) SaveDraft(assessmentID uint) error {
	if err := s.assessmentRepo.UpdateStatus(assessmentID, model.AssessmentDraft); err != nil {
		return fmt.Errorf("database error saving draft: %w", err)
	}
	return nil
}

func (s *assessmentService) GetWithQuestions(assessmentID uint) (*dto.AssessmentResponseDTO, error) {
	assessment, err := s.assessmentRepo.FindByIDWithQuestions(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("error loading assessment %d: %w", assessmentID, err)
	}

	var resp dto.AssessmentResponseDTO
	if err := copier.Copy(&resp, assessment); err != nil {
		return nil, fmt.Errorf("error preparing assessment response: %w", err)
	}
	return &resp, nil
}

// GetForDelivery returns the learner view: questions in order with correct
// answers stripped.
func (s *assessmentService) GetForDelivery(assessmentID uint) (*dto.AssessmentDetailDTO, error) {
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

	resp := dto.AssessmentDetailDTO{
		ID:              assessment.ID,
		Title:           assessment.Title,
		Instructions:    assessment.Instructions,
		DurationMinutes: assessment.DurationMinutes,
		TotalPoints:     assessment.TotalPoints,
	}
	for _, q := range assessment.Questions {
		view := dto.QuestionViewDTO{
			ID:       q.ID,
			Text:     q.Text,
			Type:     string(q.Type),
			Points:   q.Points,
			Position: q.Position,
		}
		for _, opt := range q.Options {
			view.Options = append(view.Options, dto.OptionViewDTO{Label: opt.Label, Text: opt.Text})
		}
		resp.Questions = append(resp.Questions, view)
	}
	return &resp, nil
}

func (s *assessmentService) ListForStudent(studentID uint) ([]dto.AssessmentSummaryDTO, error) {
	published, err := s.assessmentRepo.FindPublishedWithQuestionCount()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list published assessments")
		return nil, fmt.Errorf("error fetching assessments: %w", err)
	}

	var summaries []dto.AssessmentSummaryDTO
	for _, item := range published {
		summary := dto.AssessmentSummaryDTO{
			ID:              item.Assessment.ID,
			Title:           item.Assessment.Title,
			StartAt:         item.Assessment.StartAt,
			EndAt:           item.Assessment.EndAt,
			DurationMinutes: item.Assessment.DurationMinutes,
			TotalPoints:     item.Assessment.TotalPoints,
			QuestionCount:   item.QuestionCount,
		}
		attempt, err := s.attemptRepo.FindByAssessmentAndStudent(item.Assessment.ID, studentID)
		if err != nil {
			log.Warn().Err(err).Uint("assessmentID", item.Assessment.ID).Msg("Could not resolve attempt status for listing")
		} else if attempt != nil {
			summary.AttemptID = &attempt.ID
			summary.AttemptStatus = string(attempt.Status)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
