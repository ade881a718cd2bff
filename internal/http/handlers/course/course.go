// Package course contains the HTTP handlers for the Course resource.
//
// Each exported function is a factory: it receives the repository once at
// route registration and returns the http.HandlerFunc the router calls on
// every request.
//
//	r.Post("/courses", course.New(repo))
package course

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aanand-mishra/courses-api/internal/types"
	"github.com/aanand-mishra/courses-api/internal/utils/response"
)

// Repository is what the handlers need from the course service.
type Repository interface {
	List(ctx context.Context, createdBy string) ([]types.Course, error)
	Get(ctx context.Context, id string) (types.Course, error)
	Create(ctx context.Context, in types.NewCourse) (types.Course, error)
	Update(ctx context.Context, id string, upd types.CourseUpdate) (types.UpdateResult, error)
	Delete(ctx context.Context, id string) (int64, error)
	Reconcile(ctx context.Context, id string) (int64, error)
}

type createdResponse struct {
	Message string `json:"message"`
	types.Course
}

type updatedResponse struct {
	Message       string `json:"message"`
	ModifiedCount int64  `json:"modifiedCount"`
}

type deletedResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

type reconciledResponse struct {
	Message     string `json:"message"`
	EnrollCount int64  `json:"enrollCount"`
}

// GetList handles GET /courses?email=
// With an email, only courses created by that address are returned.
// The result is always a JSON array, [] when empty.
func GetList(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		createdBy := r.URL.Query().Get("email")
		slog.Debug("listing courses", slog.String("created_by_email", createdBy))

		courses, err := repo.List(r.Context(), createdBy)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, courses)
	}
}

// GetByID handles GET /courses/{id}
//
//	400: id is not a well-formed identifier
//	404: no such course
func GetByID(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		course, err := repo.Get(r.Context(), id)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, course)
	}
}

// New handles POST /courses
//
// Request body:
//
//	{ "title": "Algebra", "shortDescription": "intro", "createdBy": "t@x.com" }
//
// Responds 201 with the stored course, or 400 when title or
// shortDescription is missing.
func New(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in types.NewCourse
		if err := response.DecodeJSON(r, &in); err != nil {
			response.Error(w, r, err)
			return
		}

		course, err := repo.Create(r.Context(), in)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, createdResponse{
			Message: "course created successfully",
			Course:  course,
		})
	}
}

// Update handles PUT /courses/{id}
// Only title, shortDescription, imageURL, duration and fullDescription are
// applied; omitted fields keep their value and anything else is ignored.
func Update(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var upd types.CourseUpdate
		if err := response.DecodeJSON(r, &upd); err != nil {
			response.Error(w, r, err)
			return
		}

		res, err := repo.Update(r.Context(), id, upd)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, updatedResponse{
			Message:       "course updated successfully",
			ModifiedCount: res.Modified,
		})
	}
}

// Delete handles DELETE /courses/{id}
// The course's enrollments are removed along with it.
func Delete(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		n, err := repo.Delete(r.Context(), id)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, deletedResponse{
			Message:      "course deleted successfully",
			DeletedCount: n,
		})
	}
}

// Reconcile handles POST /courses/{id}/reconcile
// It rewrites enrollCount from the actual number of enrollments.
func Reconcile(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		count, err := repo.Reconcile(r.Context(), id)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, reconciledResponse{
			Message:     "enrollment count reconciled",
			EnrollCount: count,
		})
	}
}
