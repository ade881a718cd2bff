// Package storage defines the document-store contract the services run on.
//
// Services never talk to MongoDB or SQLite directly. They depend on the
// Storage interface below, so the backend is picked once in main and tests
// can run the real service code against an embedded SQLite file.
//
// Every backend must:
//   - accept and return ids as 24-character hex ObjectIDs (see ValidID),
//   - apply counter changes with a single atomic update,
//   - reject a second enrollment for the same (email, courseId) pair with
//     ErrDuplicate.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aanand-mishra/courses-api/internal/types"
)

var (
	// ErrNotFound is returned by single-record lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// CourseFields is the set of course fields an update may overwrite.
// Only non-nil entries are written; UpdatedAt is always written.
type CourseFields struct {
	Title            *string
	ShortDescription *string
	FullDescription  *string
	ImageURL         *string
	Duration         *string
	UpdatedAt        time.Time
}

// Courses is the course collection.
type Courses interface {
	// InsertCourse stores c, assigning a fresh id, and returns the id.
	InsertCourse(ctx context.Context, c types.Course) (string, error)

	// FindCourse returns ErrNotFound when no course has the id.
	FindCourse(ctx context.Context, id string) (types.Course, error)

	// FindCourses returns every course, or only those created by
	// createdBy when it is non-empty. Never returns a nil slice.
	FindCourses(ctx context.Context, createdBy string) ([]types.Course, error)

	// FindCoursesByIDs fetches many courses in one round trip. Ids that
	// match nothing are simply absent from the result.
	FindCoursesByIDs(ctx context.Context, ids []string) ([]types.Course, error)

	UpdateCourse(ctx context.Context, id string, fields CourseFields) (types.UpdateResult, error)

	// DeleteCourse returns the number of deleted records (0 or 1).
	DeleteCourse(ctx context.Context, id string) (int64, error)

	// IncrementEnrollCount atomically adds delta to the course counter.
	IncrementEnrollCount(ctx context.Context, id string, delta int64) error

	// SetEnrollCount overwrites the counter and reports whether the course
	// exists.
	SetEnrollCount(ctx context.Context, id string, count int64) (bool, error)
}

// Enrollments is the enrollment collection.
type Enrollments interface {
	// InsertEnrollment stores e and returns its new id, or ErrDuplicate.
	InsertEnrollment(ctx context.Context, e types.Enrollment) (string, error)

	// FindEnrollment returns ErrNotFound when the pair is not enrolled.
	FindEnrollment(ctx context.Context, email, courseID string) (types.Enrollment, error)

	FindEnrollmentsByEmail(ctx context.Context, email string) ([]types.Enrollment, error)

	CountEnrollmentsByCourse(ctx context.Context, courseID string) (int64, error)

	// DeleteEnrollment removes the pair's enrollment and returns the
	// number of deleted records.
	DeleteEnrollment(ctx context.Context, email, courseID string) (int64, error)

	// DeleteEnrollmentsByCourse removes every enrollment of a course.
	DeleteEnrollmentsByCourse(ctx context.Context, courseID string) (int64, error)
}

// Storage is the full store handed to the services at startup.
type Storage interface {
	Courses
	Enrollments

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// ValidID reports whether id is a well-formed record identifier.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// CanonicalID returns the lowercase form of a valid id, the form every
// store writes and compares.
func CanonicalID(id string) string {
	return strings.ToLower(id)
}

// NewID returns a fresh record identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
