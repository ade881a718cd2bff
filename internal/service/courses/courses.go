// Package courses owns course records: listing, lookup, creation, the
// allow-listed update, deletion with its enrollment cascade, and repair of
// the denormalized enrollment counter.
package courses

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aanand-mishra/courses-api/internal/apperr"
	"github.com/aanand-mishra/courses-api/internal/storage"
	"github.com/aanand-mishra/courses-api/internal/types"
	"github.com/aanand-mishra/courses-api/internal/utils/logger"
	"github.com/aanand-mishra/courses-api/internal/validation"
)

// Repository is the Course Repository. It is safe for concurrent use.
type Repository struct {
	store storage.Storage
	log   *slog.Logger
	now   func() time.Time
}

// New returns a Repository backed by store.
func New(store storage.Storage, log *slog.Logger) *Repository {
	return &Repository{
		store: store,
		log:   log.With(slog.String("component", "courses")),
		now:   Now,
	}
}

// Now is the clock used for createdAt/updatedAt. Millisecond precision
// matches what MongoDB stores, so a value reads back exactly as written.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func invalidID() error {
	return apperr.InvalidArgument("invalid course id format")
}

func notFound() error {
	return apperr.NotFound("course not found")
}

// List returns every course, or only the ones created by createdBy.
func (r *Repository) List(ctx context.Context, createdBy string) ([]types.Course, error) {
	courses, err := r.store.FindCourses(ctx, createdBy)
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch courses")
	}
	return courses, nil
}

// Get returns the course with the given id.
func (r *Repository) Get(ctx context.Context, id string) (types.Course, error) {
	if !storage.ValidID(id) {
		return types.Course{}, invalidID()
	}
	id = storage.CanonicalID(id)

	course, err := r.store.FindCourse(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Course{}, notFound()
		}
		return types.Course{}, apperr.Internal(err, "failed to fetch course")
	}

	return course, nil
}

// Create validates in and stores a new course with server-side timestamps
// and a zero enrollment count.
func (r *Repository) Create(ctx context.Context, in types.NewCourse) (types.Course, error) {
	if err := validation.Struct(in); err != nil {
		return types.Course{}, err
	}

	now := r.now()
	course := types.Course{
		Title:            in.Title,
		ShortDescription: in.ShortDescription,
		FullDescription:  in.FullDescription,
		ImageURL:         in.ImageURL,
		Duration:         in.Duration,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	id, err := r.store.InsertCourse(ctx, course)
	if err != nil {
		return types.Course{}, apperr.Internal(err, "failed to create course")
	}
	course.ID = id

	r.log.Info("course created", slog.String("course_id", id), slog.String("created_by_email", in.CreatedBy))

	return course, nil
}

// Update overwrites the fields present in upd and refreshes updatedAt.
// Nothing outside CourseUpdate can be changed through it.
func (r *Repository) Update(ctx context.Context, id string, upd types.CourseUpdate) (types.UpdateResult, error) {
	if !storage.ValidID(id) {
		return types.UpdateResult{}, invalidID()
	}
	id = storage.CanonicalID(id)

	res, err := r.store.UpdateCourse(ctx, id, storage.CourseFields{
		Title:            upd.Title,
		ShortDescription: upd.ShortDescription,
		FullDescription:  upd.FullDescription,
		ImageURL:         upd.ImageURL,
		Duration:         durationText(upd.Duration),
		UpdatedAt:        r.now(),
	})
	if err != nil {
		return types.UpdateResult{}, apperr.Internal(err, "failed to update course")
	}

	if res.Matched == 0 {
		return types.UpdateResult{}, notFound()
	}

	r.log.Info("course updated", slog.String("course_id", id), slog.Int64("modified", res.Modified))

	return res, nil
}

func durationText(d *types.Duration) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

// Delete removes the course, then its enrollments. The cascade is a second
// independent write: if it fails the course stays deleted, the failure is
// logged and the orphaned enrollments surface with a null course.
func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	if !storage.ValidID(id) {
		return 0, invalidID()
	}
	id = storage.CanonicalID(id)

	deleted, err := r.store.DeleteCourse(ctx, id)
	if err != nil {
		return 0, apperr.Internal(err, "failed to delete course")
	}

	if deleted == 0 {
		return 0, notFound()
	}

	removed, err := r.store.DeleteEnrollmentsByCourse(ctx, id)
	if err != nil {
		r.log.Error("failed to remove enrollments of deleted course",
			slog.String("course_id", id),
			logger.Err(err))
	} else {
		r.log.Info("course deleted",
			slog.String("course_id", id),
			slog.Int64("enrollments_removed", removed))
	}

	return deleted, nil
}

// Reconcile recounts the enrollments of a course and stores the real
// number in its enrollCount, undoing any drift left by partial failures.
//
// The count and the write are two separate store calls. An Enroll or
// Unenroll that lands between them is overwritten, so run it again once
// traffic on the course is quiet if the result looks off by one.
func (r *Repository) Reconcile(ctx context.Context, id string) (int64, error) {
	if !storage.ValidID(id) {
		return 0, invalidID()
	}
	id = storage.CanonicalID(id)

	count, err := r.store.CountEnrollmentsByCourse(ctx, id)
	if err != nil {
		return 0, apperr.Internal(err, "failed to count enrollments")
	}

	found, err := r.store.SetEnrollCount(ctx, id, count)
	if err != nil {
		return 0, apperr.Internal(err, "failed to update enrollment count")
	}

	if !found {
		return 0, notFound()
	}

	r.log.Info("enrollment count reconciled", slog.String("course_id", id), slog.Int64("enroll_count", count))

	return count, nil
}
