package inmemdb

import (
	"context"

	"github.com/trezcool/quizdesk/core/settings"
)

type settingsRepository struct {
	db *settingsTable
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) settings.Repository {
	return &settingsRepository{db: db.settings}
}

func (repo *settingsRepository) GetSettings(_ context.Context, college string) (settings.CollegeSettings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cs, ok := repo.db.table[college]; ok {
		return *cs, nil
	}
	return settings.CollegeSettings{}, settings.ErrNotFound
}

func (repo *settingsRepository) SaveSettings(_ context.Context, cs settings.CollegeSettings) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[cs.College] = &cs
	return nil
}
