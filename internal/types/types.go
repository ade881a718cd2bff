// Package types holds the records shared by the storage, service and HTTP
// layers. Keeping them in one place prevents import cycles: every layer
// imports types, none of them imports another layer just for a struct.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a course's free-form length, such as "6 weeks" or 12.
// Clients may send it as a JSON string or a JSON number; a number is kept
// as its decimal text. It is always written back out as a string.
type Duration string

func (d *Duration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch v := v.(type) {
	case string:
		*d = Duration(v)
	case json.Number:
		*d = Duration(v.String())
	default:
		return fmt.Errorf("duration must be a string or a number, got %s", data)
	}
	return nil
}

// Course describes an offered learning unit.
//
// EnrollCount is denormalized: it should equal the number of enrollments
// referencing the course, but it is maintained with separate increments
// and can drift if a request fails halfway.
type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"shortDescription"`
	FullDescription  string    `json:"fullDescription,omitempty"`
	ImageURL         string    `json:"imageURL,omitempty"`
	Duration         Duration  `json:"duration,omitempty"`
	CreatedBy        string    `json:"createdBy,omitempty"`
	EnrollCount      int64     `json:"enrollCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewCourse is the body of POST /courses.
//
// The validate:"..." tags are checked by go-playground/validator; only
// presence is enforced.
type NewCourse struct {
	Title            string   `json:"title"            validate:"required"`
	ShortDescription string   `json:"shortDescription" validate:"required"`
	FullDescription  string   `json:"fullDescription"`
	ImageURL         string   `json:"imageURL"`
	Duration         Duration `json:"duration"`
	CreatedBy        string   `json:"createdBy"`
}

// CourseUpdate is the body of PUT /courses/{id}. It lists every mutable
// field; anything else a client sends is dropped by the JSON decoder.
// A nil pointer means "leave unchanged".
type CourseUpdate struct {
	Title            *string   `json:"title"`
	ShortDescription *string   `json:"shortDescription"`
	FullDescription  *string   `json:"fullDescription"`
	ImageURL         *string   `json:"imageURL"`
	Duration         *Duration `json:"duration"`
}

// UpdateResult reports how many records an update matched and changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Enrollment links one email to one course.
type Enrollment struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	CourseID          string    `json:"courseId"`
	CourseTitle       string    `json:"courseTitle"`
	CourseDescription string    `json:"courseDescription"`
	CreatedAt         time.Time `json:"createdAt"`
}

// EnrolledCourse is an enrollment joined with its course. Course is nil
// when the course was deleted after the enrollment was made.
type EnrolledCourse struct {
	Enrollment
	Course *Course `json:"course"`
}

// EnrollmentRequest is the body of POST /enrollments and DELETE /enrollments.
type EnrollmentRequest struct {
	Email    string `json:"email"`
	CourseID string `json:"courseId"`
}
