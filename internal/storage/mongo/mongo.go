// Package mongo implements storage.Storage on MongoDB.
//
// Courses and enrollments live in the "courses" and "enrollments"
// collections with camelCase field names, and enrollments reference their
// course by ObjectID. A unique index on enrollments (email, courseId)
// makes the store reject duplicate enrollments even when two requests
// race past the service's existence check.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aanand-mishra/courses-api/internal/config"
	"github.com/aanand-mishra/courses-api/internal/storage"
	"github.com/aanand-mishra/courses-api/internal/types"
)

const (
	coursesCollection     = "courses"
	enrollmentsCollection = "enrollments"
)

// Mongo is the MongoDB implementation of storage.Storage.
// mongo.Client pools connections and is safe for concurrent use.
type Mongo struct {
	client      *mongo.Client
	courses     *mongo.Collection
	enrollments *mongo.Collection
}

var _ storage.Storage = (*Mongo)(nil)

type courseDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Title            string             `bson:"title"`
	ShortDescription string             `bson:"shortDescription"`
	FullDescription  string             `bson:"fullDescription,omitempty"`
	ImageURL         string             `bson:"imageURL,omitempty"`
	// Older documents store duration as a number.
	Duration    any       `bson:"duration,omitempty"`
	CreatedBy   string    `bson:"createdBy,omitempty"`
	EnrollCount int64     `bson:"enrollCount"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type enrollmentDocument struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Email             string             `bson:"email"`
	CourseID          primitive.ObjectID `bson:"courseId"`
	CourseTitle       string             `bson:"courseTitle"`
	CourseDescription string             `bson:"courseDescription"`
	CreatedAt         time.Time          `bson:"createdAt"`
}

// New connects to cfg.URI, verifies the connection with a ping and makes
// sure the indexes exist. It fails if the server cannot be reached within
// cfg.ConnectTimeout.
func New(ctx context.Context, cfg config.Mongo) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo.New: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.New: ping: %w", err)
	}

	db := client.Database(cfg.Database)
	m := &Mongo{
		client:      client,
		courses:     db.Collection(coursesCollection),
		enrollments: db.Collection(enrollmentsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.enrollments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "courseId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_courseId_unique"),
		},
		{
			Keys:    bson.D{{Key: "courseId", Value: 1}},
			Options: options.Index().SetName("courseId"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo.New: enrollment indexes: %w", err)
	}

	_, err = m.courses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdBy", Value: 1}},
		Options: options.Index().SetName("createdBy"),
	})
	if err != nil {
		return fmt.Errorf("mongo.New: course indexes: %w", err)
	}

	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) InsertCourse(ctx context.Context, c types.Course) (string, error) {
	doc := fromCourse(c)
	doc.ID = primitive.NewObjectID()

	if _, err := m.courses.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("InsertCourse: %w", err)
	}

	return doc.ID.Hex(), nil
}

func (m *Mongo) FindCourse(ctx context.Context, id string) (types.Course, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.Course{}, err
	}

	var doc courseDocument
	if err := m.courses.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Course{}, storage.ErrNotFound
		}
		return types.Course{}, fmt.Errorf("FindCourse: %w", err)
	}

	return toCourse(doc), nil
}

func (m *Mongo) FindCourses(ctx context.Context, createdBy string) ([]types.Course, error) {
	filter := bson.M{}
	if createdBy != "" {
		filter["createdBy"] = createdBy
	}

	return m.findCourses(ctx, "FindCourses", filter)
}

func (m *Mongo) FindCoursesByIDs(ctx context.Context, ids []string) ([]types.Course, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []types.Course{}, nil
	}

	return m.findCourses(ctx, "FindCoursesByIDs", bson.M{"_id": bson.M{"$in": oids}})
}

func (m *Mongo) findCourses(ctx context.Context, op string, filter bson.M) ([]types.Course, error) {
	cursor, err := m.courses.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}

	var docs []courseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	courses := make([]types.Course, 0, len(docs))
	for _, doc := range docs {
		courses = append(courses, toCourse(doc))
	}

	return courses, nil
}

func (m *Mongo) UpdateCourse(ctx context.Context, id string, fields storage.CourseFields) (types.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.UpdateResult{}, err
	}

	res, err := m.courses.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": courseSet(fields)})
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("UpdateCourse: %w", err)
	}

	return types.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (m *Mongo) DeleteCourse(ctx context.Context, id string) (int64, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, err
	}

	res, err := m.courses.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("DeleteCourse: %w", err)
	}

	return res.DeletedCount, nil
}

func (m *Mongo) IncrementEnrollCount(ctx context.Context, id string, delta int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	_, err = m.courses.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"enrollCount": delta}},
	)
	if err != nil {
		return fmt.Errorf("IncrementEnrollCount: %w", err)
	}

	return nil
}

func (m *Mongo) SetEnrollCount(ctx context.Context, id string, count int64) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	res, err := m.courses.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"enrollCount": count}},
	)
	if err != nil {
		return false, fmt.Errorf("SetEnrollCount: %w", err)
	}

	return res.MatchedCount > 0, nil
}

func (m *Mongo) InsertEnrollment(ctx context.Context, e types.Enrollment) (string, error) {
	courseID, err := objectID(e.CourseID)
	if err != nil {
		return "", err
	}

	doc := enrollmentDocument{
		ID:                primitive.NewObjectID(),
		Email:             e.Email,
		CourseID:          courseID,
		CourseTitle:       e.CourseTitle,
		CourseDescription: e.CourseDescription,
		CreatedAt:         e.CreatedAt,
	}

	if _, err := m.enrollments.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", storage.ErrDuplicate
		}
		return "", fmt.Errorf("InsertEnrollment: %w", err)
	}

	return doc.ID.Hex(), nil
}

func (m *Mongo) FindEnrollment(ctx context.Context, email, courseID string) (types.Enrollment, error) {
	oid, err := objectID(courseID)
	if err != nil {
		return types.Enrollment{}, err
	}

	var doc enrollmentDocument
	err = m.enrollments.FindOne(ctx, bson.M{"email": email, "courseId": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Enrollment{}, storage.ErrNotFound
		}
		return types.Enrollment{}, fmt.Errorf("FindEnrollment: %w", err)
	}

	return toEnrollment(doc), nil
}

func (m *Mongo) FindEnrollmentsByEmail(ctx context.Context, email string) ([]types.Enrollment, error) {
	cursor, err := m.enrollments.Find(ctx, bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("FindEnrollmentsByEmail: find: %w", err)
	}

	var docs []enrollmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("FindEnrollmentsByEmail: decode: %w", err)
	}

	enrollments := make([]types.Enrollment, 0, len(docs))
	for _, doc := range docs {
		enrollments = append(enrollments, toEnrollment(doc))
	}

	return enrollments, nil
}

func (m *Mongo) CountEnrollmentsByCourse(ctx context.Context, courseID string) (int64, error) {
	oid, err := objectID(courseID)
	if err != nil {
		return 0, err
	}

	n, err := m.enrollments.CountDocuments(ctx, bson.M{"courseId": oid})
	if err != nil {
		return 0, fmt.Errorf("CountEnrollmentsByCourse: %w", err)
	}

	return n, nil
}

func (m *Mongo) DeleteEnrollment(ctx context.Context, email, courseID string) (int64, error) {
	oid, err := objectID(courseID)
	if err != nil {
		return 0, err
	}

	res, err := m.enrollments.DeleteOne(ctx, bson.M{"email": email, "courseId": oid})
	if err != nil {
		return 0, fmt.Errorf("DeleteEnrollment: %w", err)
	}

	return res.DeletedCount, nil
}

func (m *Mongo) DeleteEnrollmentsByCourse(ctx context.Context, courseID string) (int64, error) {
	oid, err := objectID(courseID)
	if err != nil {
		return 0, err
	}

	res, err := m.enrollments.DeleteMany(ctx, bson.M{"courseId": oid})
	if err != nil {
		return 0, fmt.Errorf("DeleteEnrollmentsByCourse: %w", err)
	}

	return res.DeletedCount, nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", id, err)
	}
	return oid, nil
}

// objectIDs converts ids, dropping malformed and repeated entries.
func objectIDs(ids []string) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	oids := make([]primitive.ObjectID, 0, len(ids))

	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		oids = append(oids, oid)
	}

	return oids
}

// courseSet builds the $set document for an update: updatedAt plus every
// field the caller supplied.
func courseSet(fields storage.CourseFields) bson.D {
	set := bson.D{{Key: "updatedAt", Value: fields.UpdatedAt}}

	for _, f := range []struct {
		key   string
		value *string
	}{
		{"title", fields.Title},
		{"shortDescription", fields.ShortDescription},
		{"imageURL", fields.ImageURL},
		{"duration", fields.Duration},
		{"fullDescription", fields.FullDescription},
	} {
		if f.value != nil {
			set = append(set, bson.E{Key: f.key, Value: *f.value})
		}
	}

	return set
}

func fromCourse(c types.Course) courseDocument {
	doc := courseDocument{
		Title:            c.Title,
		ShortDescription: c.ShortDescription,
		FullDescription:  c.FullDescription,
		ImageURL:         c.ImageURL,
		CreatedBy:        c.CreatedBy,
		EnrollCount:      c.EnrollCount,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.Duration != "" {
		doc.Duration = string(c.Duration)
	}
	return doc
}

func toCourse(doc courseDocument) types.Course {
	return types.Course{
		ID:               doc.ID.Hex(),
		Title:            doc.Title,
		ShortDescription: doc.ShortDescription,
		FullDescription:  doc.FullDescription,
		ImageURL:         doc.ImageURL,
		Duration:         types.Duration(durationString(doc.Duration)),
		CreatedBy:        doc.CreatedBy,
		EnrollCount:      doc.EnrollCount,
		CreatedAt:        doc.CreatedAt.UTC(),
		UpdatedAt:        doc.UpdatedAt.UTC(),
	}
}

func durationString(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	case int32:
		return strconv.FormatInt(int64(d), 10)
	case int64:
		return strconv.FormatInt(d, 10)
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	default:
		return fmt.Sprint(d)
	}
}

func toEnrollment(doc enrollmentDocument) types.Enrollment {
	return types.Enrollment{
		ID:                doc.ID.Hex(),
		Email:             doc.Email,
		CourseID:          doc.CourseID.Hex(),
		CourseTitle:       doc.CourseTitle,
		CourseDescription: doc.CourseDescription,
		CreatedAt:         doc.CreatedAt.UTC(),
	}
}
