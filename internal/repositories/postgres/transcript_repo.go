package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/voiceflow/voiceflow/internal/models"
	"github.com/voiceflow/voiceflow/internal/utils"
)

type TranscriptRepo interface {
	Insert(ctx context.Context, rec *models.TranscriptRecord) error
	GetByID(ctx context.Context, id string) (*models.TranscriptRecord, error)
	Latest(ctx context.Context, limit int) ([]models.TranscriptRecord, error)
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepo {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Insert(ctx context.Context, rec *models.TranscriptRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *transcriptRepo) GetByID(ctx context.Context, id string) (*models.TranscriptRecord, error) {
	var row models.TranscriptRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *transcriptRepo) Latest(ctx context.Context, limit int) ([]models.TranscriptRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.TranscriptRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
