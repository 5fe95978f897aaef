package repository

import (
	"context"

	"settlement-service/models"

	"gorm.io/gorm"
)

type SettlementLogRepository interface {
	SaveLog(ctx context.Context, log *models.SettlementLog) error
	GetLogs(ctx context.Context, filter models.SettlementLogFilter) ([]models.SettlementLog, int64, error)
}

type settlementLogRepository struct {
	db *gorm.DB
}

func NewSettlementLogRepository(db *gorm.DB) SettlementLogRepository {
	return &settlementLogRepository{db: db}
}

func (r *settlementLogRepository) SaveLog(ctx context.Context, log *models.SettlementLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *settlementLogRepository) GetLogs(ctx context.Context, filter models.SettlementLogFilter) ([]models.SettlementLog, int64, error) {
	var logs []models.SettlementLog
	var total int64

	if filter.PageSize < 1 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	query := r.db.WithContext(ctx).Model(&models.SettlementLog{})

	if filter.RequestID != "" {
		query = query.Where("request_id = ?", filter.RequestID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&logs).Error

	return logs, total, err
}
