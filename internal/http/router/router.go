// Package router wires the HTTP handlers, middleware and fallback routes
// into one chi router.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/aanand-mishra/courses-api/internal/http/handlers/course"
	"github.com/aanand-mishra/courses-api/internal/http/handlers/enrollment"
	"github.com/aanand-mishra/courses-api/internal/utils/logger"
	"github.com/aanand-mishra/courses-api/internal/utils/response"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Courses        course.Repository
	Enrollments    enrollment.Service
	Store          Pinger
	AllowedOrigins []string
	Log            *slog.Logger
}

const requestIDHeader = "X-Request-ID"

// New returns the application's HTTP handler.
//
//	GET    /                          banner
//	GET    /health                    store ping
//	GET    /courses                   list (optional ?email= creator filter)
//	GET    /courses/{id}              get one course
//	POST   /courses                   create
//	PUT    /courses/{id}              update allow-listed fields
//	DELETE /courses/{id}              delete with enrollments
//	POST   /courses/{id}/reconcile    recount enrollCount
//	POST   /enrollments               enroll
//	GET    /enrollments/check         is email enrolled in courseId
//	GET    /enrollments               enrollments of ?email= with courses
//	DELETE /enrollments               unenroll
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		response.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "Course management server is running!",
			"status":  "OK",
		})
	})
	r.Get("/health", health(d.Store))

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", course.GetList(d.Courses))
		r.Post("/", course.New(d.Courses))
		r.Get("/{id}", course.GetByID(d.Courses))
		r.Put("/{id}", course.Update(d.Courses))
		r.Delete("/{id}", course.Delete(d.Courses))
		r.Post("/{id}/reconcile", course.Reconcile(d.Courses))
	})

	r.Route("/enrollments", func(r chi.Router) {
		r.Get("/", enrollment.GetList(d.Enrollments))
		r.Post("/", enrollment.Enroll(d.Enrollments))
		r.Delete("/", enrollment.Unenroll(d.Enrollments))
		r.Get("/check", enrollment.Check(d.Enrollments))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteJSON(w, http.StatusNotFound,
			response.Response{Status: response.StatusError, Error: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteJSON(w, http.StatusMethodNotAllowed,
			response.Response{Status: response.StatusError, Error: "method not allowed"})
	})

	return r
}

func health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			slog.Warn("health check failed", logger.Err(err))
			response.WriteJSON(w, http.StatusServiceUnavailable,
				response.Response{Status: response.StatusError, Error: "storage unavailable"})
			return
		}

		response.WriteJSON(w, http.StatusOK, map[string]string{"status": response.StatusOK})
	}
}

// requestID reuses the caller's X-Request-ID or assigns a UUID, echoes it
// back, and stores it where middleware.GetReqID finds it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("remote_addr", r.RemoteAddr))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
