// Package enrollment contains the HTTP handlers for enrollments.
package enrollment

import (
	"context"
	"net/http"

	"github.com/aanand-mishra/courses-api/internal/types"
	"github.com/aanand-mishra/courses-api/internal/utils/response"
)

// Service is what the handlers need from the enrollment service.
type Service interface {
	Enroll(ctx context.Context, email, courseID string) (types.Enrollment, error)
	Check(ctx context.Context, email, courseID string) (bool, *types.Enrollment, error)
	ListForUser(ctx context.Context, email string) ([]types.EnrolledCourse, error)
	Unenroll(ctx context.Context, email, courseID string) (int64, error)
}

type enrolledResponse struct {
	Message      string `json:"message"`
	EnrollmentID string `json:"enrollmentId"`
	Enrolled     bool   `json:"enrolled"`
}

type checkResponse struct {
	Enrolled   bool              `json:"enrolled"`
	Enrollment *types.Enrollment `json:"enrollment"`
}

type unenrolledResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

// Enroll handles POST /enrollments
//
// Request body:
//
//	{ "email": "a@x.com", "courseId": "665f1c2e9b1e8a3d4c5b6a7f" }
//
//	201: enrolled
//	400: missing email/courseId or malformed courseId
//	404: no such course
//	409: already enrolled
func Enroll(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EnrollmentRequest
		if err := response.DecodeJSON(r, &req); err != nil {
			response.Error(w, r, err)
			return
		}

		enrollment, err := svc.Enroll(r.Context(), req.Email, req.CourseID)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, enrolledResponse{
			Message:      "successfully enrolled in course",
			EnrollmentID: enrollment.ID,
			Enrolled:     true,
		})
	}
}

// Check handles GET /enrollments/check?email=&courseId=
// enrollment is null when enrolled is false.
func Check(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		enrolled, enrollment, err := svc.Check(r.Context(), q.Get("email"), q.Get("courseId"))
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, checkResponse{
			Enrolled:   enrolled,
			Enrollment: enrollment,
		})
	}
}

// GetList handles GET /enrollments?email=
// Each item is the enrollment plus a "course" field holding the course, or
// null if the course has been deleted.
func GetList(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListForUser(r.Context(), r.URL.Query().Get("email"))
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, list)
	}
}

// Unenroll handles DELETE /enrollments with a { "email", "courseId" } body.
func Unenroll(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EnrollmentRequest
		if err := response.DecodeJSON(r, &req); err != nil {
			response.Error(w, r, err)
			return
		}

		n, err := svc.Unenroll(r.Context(), req.Email, req.CourseID)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, unenrolledResponse{
			Message:      "successfully removed enrollment",
			DeletedCount: n,
		})
	}
}
