package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/courses-api/internal/config"
	"github.com/aanand-mishra/courses-api/internal/service/courses"
	"github.com/aanand-mishra/courses-api/internal/service/enrollments"
	"github.com/aanand-mishra/courses-api/internal/storage"
	"github.com/aanand-mishra/courses-api/internal/storage/sqlite"
	"github.com/aanand-mishra/courses-api/internal/types"
	"github.com/aanand-mishra/courses-api/internal/utils/response"
)

func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store, err := sqlite.New(config.SQLite{Path: filepath.Join(t.TempDir(), "courses.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(Deps{
		Courses:        courses.New(store, log),
		Enrollments:    enrollments.New(store, log),
		Store:          store,
		AllowedOrigins: []string{"*"},
		Log:            log,
	})
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createCourse(t *testing.T, h http.Handler, body map[string]any) types.Course {
	t.Helper()

	rec := do(t, h, http.MethodPost, "/courses", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return decode[types.Course](t, rec)
}

func TestBannerAndHealth(t *testing.T) {
	h := setupTestRouter(t)

	rec := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestHealthStoreDown(t *testing.T) {
	h := New(Deps{
		Store:          downStore{},
		AllowedOrigins: []string{"*"},
		Log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	h := setupTestRouter(t)

	rec := do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode[response.Response](t, rec).Error)
}

func TestCourseCRUD(t *testing.T) {
	h := setupTestRouter(t)

	rec := do(t, h, http.MethodPost, "/courses", map[string]any{"title": "Algebra"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "field shortDescription is required", decode[response.Response](t, rec).Error)

	rec = do(t, h, http.MethodPost, "/courses", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	created := createCourse(t, h, map[string]any{
		"title":            "Algebra",
		"shortDescription": "intro",
		"createdBy":        "instructor@x.com",
		"enrollCount":      99,
	})
	require.True(t, storage.ValidID(created.ID))
	assert.Zero(t, created.EnrollCount, "enrollCount is not client-settable")

	createCourse(t, h, map[string]any{"title": "Biology", "shortDescription": "cells", "createdBy": "other@x.com"})

	rec = do(t, h, http.MethodGet, "/courses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Course](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/courses?email=instructor@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]types.Course](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	rec = do(t, h, http.MethodGet, "/courses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Algebra", decode[types.Course](t, rec).Title)

	rec = do(t, h, http.MethodGet, "/courses/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/courses/"+storage.NewID(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/courses/"+created.ID, map[string]any{
		"title":     "Linear Algebra",
		"createdBy": "intruder@x.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["modifiedCount"])

	rec = do(t, h, http.MethodGet, "/courses/"+created.ID, nil)
	got := decode[types.Course](t, rec)
	assert.Equal(t, "Linear Algebra", got.Title)
	assert.Equal(t, "intro", got.ShortDescription)
	assert.Equal(t, "instructor@x.com", got.CreatedBy)

	rec = do(t, h, http.MethodPut, "/courses/"+storage.NewID(), map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/courses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["deletedCount"])

	rec = do(t, h, http.MethodDelete, "/courses/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollmentFlow(t *testing.T) {
	h := setupTestRouter(t)
	c := createCourse(t, h, map[string]any{"title": "Algebra", "shortDescription": "intro"})
	pair := map[string]string{"email": "a@x.com", "courseId": c.ID}

	rec := do(t, h, http.MethodGet, "/enrollments/check?email=a@x.com&courseId="+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	check := decode[map[string]any](t, rec)
	assert.Equal(t, false, check["enrolled"])
	assert.Nil(t, check["enrollment"])

	rec = do(t, h, http.MethodPost, "/enrollments", pair)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	enrolled := decode[map[string]any](t, rec)
	assert.Equal(t, true, enrolled["enrolled"])
	assert.True(t, storage.ValidID(enrolled["enrollmentId"].(string)))

	rec = do(t, h, http.MethodPost, "/enrollments", pair)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already enrolled in this course", decode[response.Response](t, rec).Error)

	rec = do(t, h, http.MethodGet, "/courses/"+c.ID, nil)
	assert.Equal(t, int64(1), decode[types.Course](t, rec).EnrollCount)

	rec = do(t, h, http.MethodGet, "/enrollments/check?email=a@x.com&courseId="+c.ID, nil)
	check = decode[map[string]any](t, rec)
	assert.Equal(t, true, check["enrolled"])
	assert.NotNil(t, check["enrollment"])

	rec = do(t, h, http.MethodGet, "/enrollments?email=a@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]types.EnrolledCourse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Algebra", list[0].CourseTitle)
	require.NotNil(t, list[0].Course)
	assert.Equal(t, c.ID, list[0].Course.ID)

	rec = do(t, h, http.MethodPost, "/courses/"+c.ID+"/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["enrollCount"])

	rec = do(t, h, http.MethodDelete, "/enrollments", pair)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["deletedCount"])

	rec = do(t, h, http.MethodDelete, "/enrollments", pair)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/courses/"+c.ID, nil)
	assert.Zero(t, decode[types.Course](t, rec).EnrollCount)
}

func TestEnrollmentBadRequests(t *testing.T) {
	h := setupTestRouter(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
	}{
		{"enroll empty body", http.MethodPost, "/enrollments", nil, http.StatusBadRequest},
		{"enroll malformed json", http.MethodPost, "/enrollments", "{", http.StatusBadRequest},
		{"enroll missing email", http.MethodPost, "/enrollments", map[string]string{"courseId": storage.NewID()}, http.StatusBadRequest},
		{"enroll bad course id", http.MethodPost, "/enrollments", map[string]string{"email": "a@x.com", "courseId": "42"}, http.StatusBadRequest},
		{"enroll unknown course", http.MethodPost, "/enrollments", map[string]string{"email": "a@x.com", "courseId": storage.NewID()}, http.StatusNotFound},
		{"check missing params", http.MethodGet, "/enrollments/check", nil, http.StatusBadRequest},
		{"list missing email", http.MethodGet, "/enrollments", nil, http.StatusBadRequest},
		{"unenroll missing course", http.MethodDelete, "/enrollments", map[string]string{"email": "a@x.com"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, response.StatusError, decode[response.Response](t, rec).Status)
		})
	}
}

func TestDeleteCourseLeavesNoEnrollments(t *testing.T) {
	h := setupTestRouter(t)
	c := createCourse(t, h, map[string]any{"title": "Algebra", "shortDescription": "intro"})

	rec := do(t, h, http.MethodPost, "/enrollments", map[string]string{"email": "a@x.com", "courseId": c.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodDelete, "/courses/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/enrollments?email=a@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, item := range decode[[]types.EnrolledCourse](t, rec) {
		assert.Nil(t, item.Course)
	}
}

func TestCourseNumericDuration(t *testing.T) {
	h := setupTestRouter(t)

	created := createCourse(t, h, map[string]any{
		"title":            "Algebra",
		"shortDescription": "intro",
		"duration":         12,
	})
	assert.Equal(t, types.Duration("12"), created.Duration)

	rec := do(t, h, http.MethodPut, "/courses/"+created.ID, map[string]any{"duration": 8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/courses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8", decode[map[string]any](t, rec)["duration"])

	rec = do(t, h, http.MethodPost, "/courses", map[string]any{
		"title":            "Biology",
		"shortDescription": "cells",
		"duration":         true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUppercaseCourseID(t *testing.T) {
	h := setupTestRouter(t)
	c := createCourse(t, h, map[string]any{"title": "Algebra", "shortDescription": "intro"})
	upper := strings.ToUpper(c.ID)

	rec := do(t, h, http.MethodGet, "/courses/"+upper, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, c.ID, decode[types.Course](t, rec).ID)

	rec = do(t, h, http.MethodPost, "/enrollments", map[string]string{"email": "a@x.com", "courseId": upper})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/enrollments/check?email=a@x.com&courseId="+c.ID, nil)
	assert.Equal(t, true, decode[map[string]any](t, rec)["enrolled"])

	rec = do(t, h, http.MethodGet, "/enrollments?email=a@x.com", nil)
	list := decode[[]types.EnrolledCourse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].CourseID)
	assert.NotNil(t, list[0].Course)
}
