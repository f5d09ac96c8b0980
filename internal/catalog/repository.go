package catalog

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	CountJobsByStatus(ctx context.Context) (map[string]int, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobResult(ctx context.Context, job *Job) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, status, input, markin, markout, scale, crop, filter, output,
	duration, palette_exit, encode_exit, output_size, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Status, j.Input, j.MarkIn, j.MarkOut,
		nullString(j.Scale), nullString(j.Crop), nullString(j.Filter), j.Output,
		nullString(j.Duration), nullInt(j.PaletteExit), nullInt(j.EncodeExit), j.OutputSize,
		nullString(j.Error), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

// ListPendingJobs returns queued jobs oldest first.
func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC, rowid ASC
	`, JobStatusPending)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (r *SQLiteRepository) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

// UpdateJobResult stores the outcome columns of a finished job.
func (r *SQLiteRepository) UpdateJobResult(ctx context.Context, j *Job) error {
	j.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, output = ?, duration = ?, palette_exit = ?, encode_exit = ?,
			output_size = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, j.Status, j.Output, nullString(j.Duration), nullInt(j.PaletteExit), nullInt(j.EncodeExit),
		j.OutputSize, nullString(j.Error), formatTime(j.UpdatedAt), j.ID)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var scale, crop, filter, duration, errMsg sql.NullString
	var paletteExit, encodeExit sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Status, &j.Input, &j.MarkIn, &j.MarkOut, &scale, &crop, &filter, &j.Output,
		&duration, &paletteExit, &encodeExit, &j.OutputSize, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.Scale = scale.String
	j.Crop = crop.String
	j.Filter = filter.String
	j.Duration = duration.String
	j.Error = errMsg.String
	j.PaletteExit = intPtr(paletteExit)
	j.EncodeExit = intPtr(encodeExit)
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
