package repository

import (
	"github.com/htvu/Athene/internal/model"
	"gorm.io/gorm"
)

type AssessmentRepository interface {
	Create(assessment *model.Assessment) error
	Update(assessment *model.Assessment) error
	UpdateStatus(id uint, status model.AssessmentStatus) error
	FindByID(id uint) (*model.Assessment, error)
	FindByIDWithQuestions(id uint) (*model.Assessment, error)
	FindPublishedWithQuestionCount() ([]struct {
		model.Assessment
		QuestionCount int
	}, error)
	// ReplaceQuestions swaps the full question set in one transaction. The
	// commitKey makes a retried batch a no-op: if it matches the key of the
	// last applied batch, nothing is written.
	ReplaceQuestions(assessmentID uint, questions []model.Question, commitKey string) error
}

type assessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Create(assessment *model.Assessment) error {
	return r.db.Create(assessment).Error
}

func (r *assessmentRepository) Update(assessment *model.Assessment) error {
	return r.db.Save(assessment).Error
}

func (r *assessmentRepository) UpdateStatus(id uint, status model.AssessmentStatus) error {
	return r.db.Model(&model.Assessment{}).Where("id = ?", id).
		Update("status", status).Error
}

func (r *assessmentRepository) FindByID(id uint) (*model.Assessment, error) {
	var assessment model.Assessment
	if err := r.db.First(&assessment, id).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (r *assessmentRepository) FindByIDWithQuestions(id uint) (*model.Assessment, error) {
	var assessment model.Assessment
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		Preload("Questions.Options").
		First(&assessment, id).Error
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (r *assessmentRepository) FindPublishedWithQuestionCount() ([]struct {
	model.Assessment
	QuestionCount int
}, error) {
	var results []struct {
		model.Assessment
		QuestionCount int
	}
	err := r.db.Model(&model.Assessment{}).
		Select("assessments.*, (SELECT COUNT(*) FROM questions WHERE questions.assessment_id = assessments.id AND questions.deleted_at IS NULL) as question_count").
		Where("assessments.status = ?", model.AssessmentPublished).
		Where("assessments.deleted_at IS NULL").
		Order("assessments.start_at ASC").
		Scan(&results).Error
	return results, err
}

func (r *assessmentRepository) ReplaceQuestions(assessmentID uint, questions []model.Question, commitKey string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var assessment model.Assessment
		if err := tx.First(&assessment, assessmentID).Error; err != nil {
			return err
		}
		if commitKey != "" && assessment.LastCommitKey == commitKey {
			// Batch already applied; the previous response was lost in flight.
			return nil
		}
		if err := tx.Where("question_id IN (?)",
			tx.Model(&model.Question{}).Select("id").Where("assessment_id = ?", assessmentID),
		).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("assessment_id = ?", assessmentID).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].ID = 0
			questions[i].AssessmentID = assessmentID
			if err := tx.Create(&questions[i]).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Assessment{}).Where("id = ?", assessmentID).
			Update("last_commit_key", commitKey).Error
	})
}
