package store

import (
	"context"

	"cdrpulse/internal/models"
)

// RunStats counts stored configurations and runs per status.
func (s *Store) RunStats(ctx context.Context) (models.RunStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	stats := models.RunStats{ByStatus: make(map[models.RunStatus]int64, len(models.RunStatuses))}
	for _, st := range models.RunStatuses {
		stats.ByStatus[st] = 0
	}

	orm := s.orm.WithContext(ctx)
	if err := orm.Model(&configurationModel{}).Count(&stats.Configurations).Error; err != nil {
		return models.RunStats{}, storageErr("count configurations", err)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := orm.Model(&runModel{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return models.RunStats{}, storageErr("count runs", err)
	}
	for _, row := range rows {
		stats.ByStatus[models.RunStatus(row.Status)] = row.Count
		stats.Runs += row.Count
	}
	return stats, nil
}
