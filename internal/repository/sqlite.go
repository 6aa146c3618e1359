package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			zone TEXT NOT NULL,
			facility_id TEXT NOT NULL,
			status TEXT NOT NULL,
			score INTEGER NOT NULL,
			priority TEXT NOT NULL,
			observation TEXT NOT NULL,
			assessment TEXT NOT NULL,
			nudges TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS volunteers (
			id TEXT PRIMARY KEY,
			name TEXT,
			reminders TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_reports_facility ON reports(zone, facility_id, kind);
		CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
		CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Create(ctx context.Context, r *models.Report) error {
	obs, err := json.Marshal(r.Observation)
	if err != nil {
		return fmt.Errorf("error marshaling observation: %w", err)
	}
	assessment, err := json.Marshal(r.Assessment)
	if err != nil {
		return fmt.Errorf("error marshaling assessment: %w", err)
	}
	nudges, err := json.Marshal(r.Nudges)
	if err != nil {
		return fmt.Errorf("error marshaling nudges: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, kind, zone, facility_id, status, score, priority, observation, assessment, nudges, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.Zone, r.FacilityID, string(r.Status),
		r.Assessment.Score, string(r.Assessment.Priority),
		string(obs), string(assessment), string(nudges), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting report: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Update(ctx context.Context, id string, patch ReportPatch) error {
	sets := []string{}
	args := []any{}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Observation != nil {
		obs, err := json.Marshal(patch.Observation)
		if err != nil {
			return fmt.Errorf("error marshaling observation: %w", err)
		}
		sets = append(sets, "observation = ?")
		args = append(args, string(obs))
	}
	if patch.Assessment != nil {
		assessment, err := json.Marshal(patch.Assessment)
		if err != nil {
			return fmt.Errorf("error marshaling assessment: %w", err)
		}
		sets = append(sets, "assessment = ?", "score = ?", "priority = ?")
		args = append(args, string(assessment), patch.Assessment.Score, string(patch.Assessment.Priority))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE reports SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("error updating report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) Get(ctx context.Context, id string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, selectReport+" WHERE id = ?", id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *SQLiteDB) FindActive(ctx context.Context, key models.FacilityKey) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, selectReport+`
		WHERE zone = ? AND facility_id = ? AND kind = ?
		  AND status NOT IN ('Resolved', 'Archived')
		ORDER BY created_at DESC LIMIT 1`,
		key.Zone, key.FacilityID, string(key.Kind))
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteDB) List(ctx context.Context, opts Filter) ([]models.Report, error) {
	query := selectReport + " WHERE 1=1"
	args := []any{}

	if opts.Zone != "" {
		query += " AND zone = ?"
		args = append(args, opts.Zone)
	}
	if opts.Kind != nil {
		query += " AND kind = ?"
		args = append(args, string(*opts.Kind))
	}
	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*opts.Status))
	}
	if opts.ActiveOnly {
		query += " AND status NOT IN ('Resolved', 'Archived')"
	}
	if opts.MinPriority != nil {
		// Priority derives from score, so a priority floor is a score floor.
		query += " AND score >= ?"
		args = append(args, priorityFloor(*opts.MinPriority))
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *SQLiteDB) SetNudges(ctx context.Context, id string, nudges []models.Nudge) error {
	data, err := json.Marshal(nudges)
	if err != nil {
		return fmt.Errorf("error marshaling nudges: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE reports SET nudges = ? WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("error updating nudges: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	var (
		v         models.Volunteer
		name      sql.NullString
		reminders sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, reminders FROM volunteers WHERE id = ?", id).
		Scan(&v.ID, &name, &reminders)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching volunteer: %w", err)
	}
	v.Name = name.String
	if reminders.Valid && reminders.String != "" {
		if err := json.Unmarshal([]byte(reminders.String), &v.Reminders); err != nil {
			return nil, fmt.Errorf("error decoding reminders: %w", err)
		}
	}
	return &v, nil
}

func (s *SQLiteDB) PutVolunteer(ctx context.Context, v *models.Volunteer) error {
	reminders, err := json.Marshal(v.Reminders)
	if err != nil {
		return fmt.Errorf("error marshaling reminders: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO volunteers (id, name, reminders) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, reminders = excluded.reminders`,
		v.ID, v.Name, string(reminders))
	if err != nil {
		return fmt.Errorf("error upserting volunteer: %w", err)
	}
	return nil
}

const selectReport = `
	SELECT id, kind, zone, facility_id, status, observation, assessment, nudges, created_at
	FROM reports`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r          models.Report
		kind       string
		status     string
		obs        string
		assessment string
		nudges     sql.NullString
		createdAt  time.Time
	)
	if err := row.Scan(&r.ID, &kind, &r.Zone, &r.FacilityID, &status, &obs, &assessment, &nudges, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning report: %w", err)
	}

	r.Kind = models.FacilityKind(kind)
	r.Status = models.ReportStatus(status)
	r.CreatedAt = createdAt

	if err := json.Unmarshal([]byte(obs), &r.Observation); err != nil {
		return nil, fmt.Errorf("error decoding observation: %w", err)
	}
	if err := json.Unmarshal([]byte(assessment), &r.Assessment); err != nil {
		return nil, fmt.Errorf("error decoding assessment: %w", err)
	}
	if nudges.Valid && nudges.String != "" && nudges.String != "null" {
		if err := json.Unmarshal([]byte(nudges.String), &r.Nudges); err != nil {
			return nil, fmt.Errorf("error decoding nudges: %w", err)
		}
	}
	return &r, nil
}

func priorityFloor(p models.Priority) int {
	switch p {
	case models.PriorityCritical:
		return 75
	case models.PriorityHigh:
		return 50
	case models.PriorityMedium:
		return 25
	default:
		return 0
	}
}
