// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite keeps both collections in a single file with no server process,
// which makes it the store for local development and for the test suite.
// Ids are ObjectID hex strings so they are interchangeable with the
// MongoDB backend.
//
// Importing go-sqlite3 registers the "sqlite3" driver with database/sql;
// its error type is also used to detect unique constraint violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/courses-api/internal/config"
	"github.com/aanand-mishra/courses-api/internal/storage"
	"github.com/aanand-mishra/courses-api/internal/types"
)

// SQLite is the embedded implementation of storage.Storage.
// The *sql.DB is a connection pool and is safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS courses (
	id                TEXT      PRIMARY KEY,
	title             TEXT      NOT NULL,
	short_description TEXT      NOT NULL,
	full_description  TEXT      NOT NULL DEFAULT '',
	image_url         TEXT      NOT NULL DEFAULT '',
	duration          TEXT      NOT NULL DEFAULT '',
	created_by        TEXT      NOT NULL DEFAULT '',
	enroll_count      INTEGER   NOT NULL DEFAULT 0,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_courses_created_by ON courses (created_by);

CREATE TABLE IF NOT EXISTS enrollments (
	id                 TEXT      PRIMARY KEY,
	email              TEXT      NOT NULL,
	course_id          TEXT      NOT NULL,
	course_title       TEXT      NOT NULL DEFAULT '',
	course_description TEXT      NOT NULL DEFAULT '',
	created_at         TIMESTAMP NOT NULL,
	UNIQUE (email, course_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_course_id ON enrollments (course_id);
`

// New opens the SQLite database at cfg.Path, creating the file, its
// directory and both tables if they do not already exist.
func New(cfg config.SQLite) (*SQLite, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create dir: %w", err)
		}
	}

	// busy_timeout makes concurrent writers wait for the lock instead of
	// failing immediately with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create tables: %w", err)
	}

	return &SQLite{Db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

func (s *SQLite) Close(_ context.Context) error {
	return s.Db.Close()
}

const courseColumns = `id, title, short_description, full_description, image_url, duration,
	created_by, enroll_count, created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (types.Course, error) {
	var c types.Course
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.ShortDescription,
		&c.FullDescription,
		&c.ImageURL,
		&c.Duration,
		&c.CreatedBy,
		&c.EnrollCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (s *SQLite) InsertCourse(ctx context.Context, c types.Course) (string, error) {
	id := storage.NewID()

	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Title, c.ShortDescription, c.FullDescription, c.ImageURL, string(c.Duration),
		c.CreatedBy, c.EnrollCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("InsertCourse: exec: %w", err)
	}

	return id, nil
}

func (s *SQLite) FindCourse(ctx context.Context, id string) (types.Course, error) {
	row := s.Db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ? LIMIT 1`, id)

	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Course{}, storage.ErrNotFound
		}
		return types.Course{}, fmt.Errorf("FindCourse: scan: %w", err)
	}

	return c, nil
}

func (s *SQLite) FindCourses(ctx context.Context, createdBy string) ([]types.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses`
	var args []any
	if createdBy != "" {
		query += ` WHERE created_by = ?`
		args = append(args, createdBy)
	}
	query += ` ORDER BY created_at, id`

	return s.queryCourses(ctx, "FindCourses", query, args...)
}

func (s *SQLite) FindCoursesByIDs(ctx context.Context, ids []string) ([]types.Course, error) {
	if len(ids) == 0 {
		return []types.Course{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + courseColumns + ` FROM courses WHERE id IN (` + placeholders(len(ids)) + `)`
	return s.queryCourses(ctx, "FindCoursesByIDs", query, args...)
}

func (s *SQLite) queryCourses(ctx context.Context, op, query string, args ...any) ([]types.Course, error) {
	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	courses := make([]types.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration: %w", op, err)
	}

	return courses, nil
}

func (s *SQLite) UpdateCourse(ctx context.Context, id string, fields storage.CourseFields) (types.UpdateResult, error) {
	sets := []string{"updated_at = ?"}
	args := []any{fields.UpdatedAt}

	for _, f := range []struct {
		column string
		value  *string
	}{
		{"title", fields.Title},
		{"short_description", fields.ShortDescription},
		{"full_description", fields.FullDescription},
		{"image_url", fields.ImageURL},
		{"duration", fields.Duration},
	} {
		if f.value != nil {
			sets = append(sets, f.column+" = ?")
			args = append(args, *f.value)
		}
	}
	args = append(args, id)

	res, err := s.Db.ExecContext(ctx,
		`UPDATE courses SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("UpdateCourse: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("UpdateCourse: rows affected: %w", err)
	}

	// updated_at always changes, so every matched row is also modified.
	return types.UpdateResult{Matched: n, Modified: n}, nil
}

func (s *SQLite) DeleteCourse(ctx context.Context, id string) (int64, error) {
	return s.execCount(ctx, "DeleteCourse", `DELETE FROM courses WHERE id = ?`, id)
}

func (s *SQLite) IncrementEnrollCount(ctx context.Context, id string, delta int64) error {
	_, err := s.Db.ExecContext(ctx,
		`UPDATE courses SET enroll_count = enroll_count + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("IncrementEnrollCount: exec: %w", err)
	}
	return nil
}

func (s *SQLite) SetEnrollCount(ctx context.Context, id string, count int64) (bool, error) {
	n, err := s.execCount(ctx, "SetEnrollCount",
		`UPDATE courses SET enroll_count = ? WHERE id = ?`, count, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const enrollmentColumns = `id, email, course_id, course_title, course_description, created_at`

func scanEnrollment(row scanner) (types.Enrollment, error) {
	var e types.Enrollment
	err := row.Scan(
		&e.ID,
		&e.Email,
		&e.CourseID,
		&e.CourseTitle,
		&e.CourseDescription,
		&e.CreatedAt,
	)
	return e, err
}

func (s *SQLite) InsertEnrollment(ctx context.Context, e types.Enrollment) (string, error) {
	id := storage.NewID()

	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO enrollments (`+enrollmentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, e.Email, e.CourseID, e.CourseTitle, e.CourseDescription, e.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return "", storage.ErrDuplicate
		}
		return "", fmt.Errorf("InsertEnrollment: exec: %w", err)
	}

	return id, nil
}

func (s *SQLite) FindEnrollment(ctx context.Context, email, courseID string) (types.Enrollment, error) {
	row := s.Db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE email = ? AND course_id = ? LIMIT 1`,
		email, courseID)

	e, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Enrollment{}, storage.ErrNotFound
		}
		return types.Enrollment{}, fmt.Errorf("FindEnrollment: scan: %w", err)
	}

	return e, nil
}

func (s *SQLite) FindEnrollmentsByEmail(ctx context.Context, email string) ([]types.Enrollment, error) {
	rows, err := s.Db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE email = ? ORDER BY created_at, id`, email)
	if err != nil {
		return nil, fmt.Errorf("FindEnrollmentsByEmail: query: %w", err)
	}
	defer rows.Close()

	enrollments := make([]types.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("FindEnrollmentsByEmail: scan row: %w", err)
		}
		enrollments = append(enrollments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindEnrollmentsByEmail: rows iteration: %w", err)
	}

	return enrollments, nil
}

func (s *SQLite) CountEnrollmentsByCourse(ctx context.Context, courseID string) (int64, error) {
	var n int64
	err := s.Db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, courseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountEnrollmentsByCourse: scan: %w", err)
	}
	return n, nil
}

func (s *SQLite) DeleteEnrollment(ctx context.Context, email, courseID string) (int64, error) {
	return s.execCount(ctx, "DeleteEnrollment",
		`DELETE FROM enrollments WHERE email = ? AND course_id = ?`, email, courseID)
}

func (s *SQLite) DeleteEnrollmentsByCourse(ctx context.Context, courseID string) (int64, error) {
	return s.execCount(ctx, "DeleteEnrollmentsByCourse",
		`DELETE FROM enrollments WHERE course_id = ?`, courseID)
}

// execCount runs a write and returns the number of affected rows.
func (s *SQLite) execCount(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.Db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: exec: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}

	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
