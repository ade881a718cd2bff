// Package enrollments owns enrollment records and keeps each course's
// enrollCount in step with them.
//
// A (email, course) pair moves between two states only: Enroll takes it
// from unenrolled to enrolled, Unenroll takes it back. Re-enrolling after
// an unenroll creates a fresh record.
//
// The enrollment write and the counter update are separate store calls.
// If the counter update fails the enrollment stands, the failure is
// logged and the course's count is off by one until it is reconciled.
package enrollments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aanand-mishra/courses-api/internal/apperr"
	"github.com/aanand-mishra/courses-api/internal/storage"
	"github.com/aanand-mishra/courses-api/internal/types"
	"github.com/aanand-mishra/courses-api/internal/utils/logger"
)

// Service is the Enrollment Service. It is safe for concurrent use.
type Service struct {
	store storage.Storage
	log   *slog.Logger
	now   func() time.Time
}

// New returns a Service backed by store.
func New(store storage.Storage, log *slog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With(slog.String("component", "enrollments")),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// validatePair checks the request pair and returns courseID in canonical
// form.
func validatePair(email, courseID string) (string, error) {
	if email == "" || courseID == "" {
		return "", apperr.InvalidArgument("email and courseId are required")
	}
	if !storage.ValidID(courseID) {
		return "", apperr.InvalidArgument("invalid course id format")
	}
	return storage.CanonicalID(courseID), nil
}

// Enroll enrolls email in the course and returns the new record.
// It fails with Conflict when the pair is already enrolled.
func (s *Service) Enroll(ctx context.Context, email, courseID string) (types.Enrollment, error) {
	courseID, err := validatePair(email, courseID)
	if err != nil {
		return types.Enrollment{}, err
	}

	course, err := s.store.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Enrollment{}, apperr.NotFound("course not found")
		}
		return types.Enrollment{}, apperr.Internal(err, "failed to enroll in course")
	}

	_, err = s.store.FindEnrollment(ctx, email, courseID)
	switch {
	case err == nil:
		return types.Enrollment{}, errAlreadyEnrolled()
	case !errors.Is(err, storage.ErrNotFound):
		return types.Enrollment{}, apperr.Internal(err, "failed to enroll in course")
	}

	enrollment := types.Enrollment{
		Email:             email,
		CourseID:          courseID,
		CourseTitle:       course.Title,
		CourseDescription: course.ShortDescription,
		CreatedAt:         s.now(),
	}

	id, err := s.store.InsertEnrollment(ctx, enrollment)
	if err != nil {
		// Lost a race with a concurrent Enroll for the same pair.
		if errors.Is(err, storage.ErrDuplicate) {
			return types.Enrollment{}, errAlreadyEnrolled()
		}
		return types.Enrollment{}, apperr.Internal(err, "failed to enroll in course")
	}
	enrollment.ID = id

	s.adjustCount(ctx, courseID, 1)

	s.log.Info("enrolled",
		slog.String("email", email),
		slog.String("course_id", courseID),
		slog.String("enrollment_id", id))

	return enrollment, nil
}

func errAlreadyEnrolled() error {
	return apperr.Conflict("already enrolled in this course")
}

// Check reports whether email is enrolled in the course, with the record
// when it is. It never writes.
func (s *Service) Check(ctx context.Context, email, courseID string) (bool, *types.Enrollment, error) {
	courseID, err := validatePair(email, courseID)
	if err != nil {
		return false, nil, err
	}

	enrollment, err := s.store.FindEnrollment(ctx, email, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil, nil
		}
		return false, nil, apperr.Internal(err, "failed to check enrollment")
	}

	return true, &enrollment, nil
}

// ListForUser returns the user's enrollments, each joined with its course.
// Courses are fetched in one batch; an enrollment whose course no longer
// exists is returned with a nil Course.
func (s *Service) ListForUser(ctx context.Context, email string) ([]types.EnrolledCourse, error) {
	if email == "" {
		return nil, apperr.InvalidArgument("email is required")
	}

	enrollments, err := s.store.FindEnrollmentsByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch enrollments")
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}

	courses, err := s.store.FindCoursesByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch enrollments")
	}

	byID := make(map[string]types.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	result := make([]types.EnrolledCourse, 0, len(enrollments))
	for _, e := range enrollments {
		item := types.EnrolledCourse{Enrollment: e}
		if c, ok := byID[e.CourseID]; ok {
			item.Course = &c
		}
		result = append(result, item)
	}

	return result, nil
}

// Unenroll removes the pair's enrollment and decrements the course's
// counter. The counter has no floor at zero.
func (s *Service) Unenroll(ctx context.Context, email, courseID string) (int64, error) {
	courseID, err := validatePair(email, courseID)
	if err != nil {
		return 0, err
	}

	deleted, err := s.store.DeleteEnrollment(ctx, email, courseID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to remove enrollment")
	}

	if deleted == 0 {
		return 0, apperr.NotFound("enrollment not found")
	}

	s.adjustCount(ctx, courseID, -1)

	s.log.Info("unenrolled", slog.String("email", email), slog.String("course_id", courseID))

	return deleted, nil
}

func (s *Service) adjustCount(ctx context.Context, courseID string, delta int64) {
	if err := s.store.IncrementEnrollCount(ctx, courseID, delta); err != nil {
		s.log.Error("failed to update enrollment count",
			slog.String("course_id", courseID),
			slog.Int64("delta", delta),
			logger.Err(err))
	}
}
