package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/brandai/internal/memory"
)

// Store implements memory.Store on a SQLite database.
type Store struct {
	db *sql.DB

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", v, err)
	}
	return t, nil
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// expectOne maps a zero-row update to memory.ErrNotFound.
func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %q", memory.ErrNotFound, kind, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// collect scans every row with scan and closes rows.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer func() { _ = rows.Close() }()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate rows: %w", err)
	}
	return out, nil
}

// --- brands ---

const brandColumns = `id, name, tagline, mission, vision, industry, audience, tone, colors, fonts, created_at`

func scanBrand(r scanner) (memory.Brand, error) {
	var (
		b          memory.Brand
		colorsJSON string
		createdAt  string
	)
	err := r.Scan(&b.ID, &b.Name, &b.Tagline, &b.Mission, &b.Vision,
		&b.Industry, &b.Audience, &b.Tone, &colorsJSON, &b.Fonts, &createdAt)
	if err != nil {
		return memory.Brand{}, err
	}
	if colorsJSON != "" && colorsJSON != "[]" && colorsJSON != "null" {
		if err := json.Unmarshal([]byte(colorsJSON), &b.Colors); err != nil {
			return memory.Brand{}, fmt.Errorf("sqlite: unmarshal colors: %w", err)
		}
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return memory.Brand{}, err
	}
	return b, nil
}

func marshalColors(colors []string) (string, error) {
	if len(colors) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(colors)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal colors: %w", err)
	}
	return string(raw), nil
}

// GetBrand implements memory.BrandStore.
func (s *Store) GetBrand(ctx context.Context, id string) (memory.Brand, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = ?`, id)
	b, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Brand{}, fmt.Errorf("%w: brand %q", memory.ErrNotFound, id)
	}
	if err != nil {
		return memory.Brand{}, fmt.Errorf("sqlite: get brand: %w", err)
	}
	return b, nil
}

// ListBrands implements memory.BrandStore.
func (s *Store) ListBrands(ctx context.Context) ([]memory.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list brands: %w", err)
	}
	return collect(rows, scanBrand)
}

// CreateBrand implements memory.BrandStore.
func (s *Store) CreateBrand(ctx context.Context, b memory.Brand) (string, error) {
	colors, err := marshalColors(b.Colors)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO brands (`+brandColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, b.Name, b.Tagline, b.Mission, b.Vision, b.Industry, b.Audience, b.Tone,
		colors, b.Fonts, formatTime(s.stamp(b.CreatedAt)),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create brand: %w", err)
	}
	return id, nil
}

// UpdateBrand implements memory.BrandStore.
func (s *Store) UpdateBrand(ctx context.Context, b memory.Brand) error {
	colors, err := marshalColors(b.Colors)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE brands SET name = ?, tagline = ?, mission = ?, vision = ?, industry = ?,
			audience = ?, tone = ?, colors = ?, fonts = ?
		WHERE id = ?`,
		b.Name, b.Tagline, b.Mission, b.Vision, b.Industry, b.Audience, b.Tone,
		colors, b.Fonts, b.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update brand: %w", err)
	}
	return expectOne(res, "brand", b.ID)
}

// DeleteBrand implements memory.BrandStore.
func (s *Store) DeleteBrand(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM brands WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete brand: %w", err)
	}
	return nil
}

// --- projects and tasks ---

func scanProject(r scanner) (memory.Project, error) {
	var (
		p         memory.Project
		createdAt string
	)
	if err := r.Scan(&p.ID, &p.BrandID, &p.Name, &p.Status, &createdAt); err != nil {
		return memory.Project{}, fmt.Errorf("sqlite: scan project: %w", err)
	}
	var err error
	p.CreatedAt, err = parseTime(createdAt)
	return p, err
}

// ListProjects implements memory.WorkStore.
func (s *Store) ListProjects(ctx context.Context, brandID string) ([]memory.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, name, status, created_at
		FROM projects WHERE brand_id = ? ORDER BY seq`, brandID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list projects: %w", err)
	}
	return collect(rows, scanProject)
}

// CreateProject implements memory.WorkStore.
func (s *Store) CreateProject(ctx context.Context, p memory.Project) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, brand_id, name, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, p.BrandID, p.Name, p.Status, formatTime(s.stamp(p.CreatedAt)),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create project: %w", err)
	}
	return id, nil
}

// UpdateProject implements memory.WorkStore.
func (s *Store) UpdateProject(ctx context.Context, p memory.Project) error {
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name = ?, status = ? WHERE id = ?`,
		p.Name, p.Status, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update project: %w", err)
	}
	return expectOne(res, "project", p.ID)
}

// DeleteProject implements memory.WorkStore. The project's tasks are
// removed in the same transaction.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE project_id = ?", id); err != nil {
			return fmt.Errorf("sqlite: delete project tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
			return fmt.Errorf("sqlite: delete project: %w", err)
		}
		return nil
	})
}

func scanTask(r scanner) (memory.Task, error) {
	var t memory.Task
	if err := r.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &t.Priority, &t.Assignee); err != nil {
		return memory.Task{}, fmt.Errorf("sqlite: scan task: %w", err)
	}
	return t, nil
}

// ListTasks implements memory.WorkStore.
func (s *Store) ListTasks(ctx context.Context, projectID string) ([]memory.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, status, priority, assignee
		FROM tasks WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	return collect(rows, scanTask)
}

// CreateTask implements memory.WorkStore.
func (s *Store) CreateTask(ctx context.Context, t memory.Task) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, status, priority, assignee) VALUES (?, ?, ?, ?, ?, ?)`,
		id, t.ProjectID, t.Title, t.Status, t.Priority, t.Assignee,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create task: %w", err)
	}
	return id, nil
}

// UpdateTask implements memory.WorkStore.
func (s *Store) UpdateTask(ctx context.Context, t memory.Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, status = ?, priority = ?, assignee = ? WHERE id = ?`,
		t.Title, t.Status, t.Priority, t.Assignee, t.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update task: %w", err)
	}
	return expectOne(res, "task", t.ID)
}

// DeleteTask implements memory.WorkStore.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete task: %w", err)
	}
	return nil
}

// --- team and campaigns ---

func scanMember(r scanner) (memory.Member, error) {
	var m memory.Member
	if err := r.Scan(&m.ID, &m.BrandID, &m.Name, &m.Role, &m.Email); err != nil {
		return memory.Member{}, fmt.Errorf("sqlite: scan member: %w", err)
	}
	return m, nil
}

// ListMembers implements memory.TeamStore.
func (s *Store) ListMembers(ctx context.Context, brandID string) ([]memory.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, name, role, email FROM members WHERE brand_id = ? ORDER BY seq`, brandID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list members: %w", err)
	}
	return collect(rows, scanMember)
}

// CreateMember implements memory.TeamStore.
func (s *Store) CreateMember(ctx context.Context, m memory.Member) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, brand_id, name, role, email) VALUES (?, ?, ?, ?, ?)`,
		id, m.BrandID, m.Name, m.Role, m.Email,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create member: %w", err)
	}
	return id, nil
}

// DeleteMember implements memory.TeamStore.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete member: %w", err)
	}
	return nil
}

func scanCampaign(r scanner) (memory.Campaign, error) {
	var c memory.Campaign
	if err := r.Scan(&c.ID, &c.BrandID, &c.Name, &c.Status); err != nil {
		return memory.Campaign{}, fmt.Errorf("sqlite: scan campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns implements memory.TeamStore.
func (s *Store) ListCampaigns(ctx context.Context, brandID string) ([]memory.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, name, status FROM campaigns WHERE brand_id = ? ORDER BY seq`, brandID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list campaigns: %w", err)
	}
	return collect(rows, scanCampaign)
}

// CreateCampaign implements memory.TeamStore.
func (s *Store) CreateCampaign(ctx context.Context, c memory.Campaign) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, brand_id, name, status) VALUES (?, ?, ?, ?)`,
		id, c.BrandID, c.Name, c.Status,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create campaign: %w", err)
	}
	return id, nil
}

// UpdateCampaign implements memory.TeamStore.
func (s *Store) UpdateCampaign(ctx context.Context, c memory.Campaign) error {
	res, err := s.db.ExecContext(ctx, `UPDATE campaigns SET name = ?, status = ? WHERE id = ?`,
		c.Name, c.Status, c.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update campaign: %w", err)
	}
	return expectOne(res, "campaign", c.ID)
}

// DeleteCampaign implements memory.TeamStore.
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM campaigns WHERE id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete campaign: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
