package repository

import (
	"github.com/htvu/Athene/internal/model"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	Update(record *model.AnswerRecord) error
	FindByAttemptID(attemptID uint) ([]model.AnswerRecord, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Update(record *model.AnswerRecord) error {
	return r.db.Save(record).Error
}

func (r *answerRepository) FindByAttemptID(attemptID uint) ([]model.AnswerRecord, error) {
	var records []model.AnswerRecord
	err := r.db.Preload("Question").
		Where("attempt_id = ?", attemptID).
		Find(&records).Error
	return records, err
}
