package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/settings"
)

type settingsRow struct {
	College      string    `db:"college"`
	OverrideHash string    `db:"override_hash"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type settingsRepository struct {
	exec core.DBExecutor
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(exec core.DBExecutor) settings.Repository {
	return &settingsRepository{exec: exec}
}

func (repo settingsRepository) GetSettings(ctx context.Context, college string) (settings.CollegeSettings, error) {
	var row settingsRow
	q := repo.exec.Rebind("SELECT college, override_hash, updated_at FROM college_settings WHERE college = ?")
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, college); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settings.CollegeSettings{}, settings.ErrNotFound
		}
		return settings.CollegeSettings{}, wrapErr(err, "finding college settings")
	}
	return settings.CollegeSettings{
		College:      row.College,
		OverrideHash: []byte(row.OverrideHash),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}

func (repo settingsRepository) SaveSettings(ctx context.Context, cs settings.CollegeSettings) error {
	q := `INSERT INTO college_settings (college, override_hash, updated_at) VALUES (:college, :override_hash, :updated_at)
ON CONFLICT (college) DO UPDATE SET override_hash = excluded.override_hash, updated_at = excluded.updated_at`
	row := settingsRow{College: cs.College, OverrideHash: string(cs.OverrideHash), UpdatedAt: cs.UpdatedAt.UTC()}
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return wrapErr(err, "saving college settings")
	}
	return nil
}
