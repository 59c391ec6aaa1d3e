package templates

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"certificate-studio/certificate-backend/internal/database"
	"certificate-studio/certificate-backend/internal/render"
)

type Repository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id primitive.ObjectID) (*Template, error)
	ListTemplates(ctx context.Context, owner primitive.ObjectID, filters ListFilters) ([]Template, int64, error)
	UpdatePlaceholders(ctx context.Context, id primitive.ObjectID, ps []render.Placeholder) error
	UpdateTemplate(ctx context.Context, t *Template) error
	IncrementUsage(ctx context.Context, id primitive.ObjectID) error
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.TemplatesCollection)}
}

func (r *mongoRepository) CreateTemplate(ctx context.Context, t *Template) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

func (r *mongoRepository) GetTemplate(ctx context.Context, id primitive.ObjectID) (*Template, error) {
	var t Template
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t.fill(), nil
}

func (r *mongoRepository) ListTemplates(ctx context.Context, owner primitive.ObjectID, filters ListFilters) ([]Template, int64, error) {
	filter := bson.M{"createdBy": owner}
	if !filters.IncludeInactive {
		filter["isActive"] = true
	}
	if filters.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(filters.Search), "$options": "i"}
	}
	if filters.Tag != "" {
		filter["tags"] = filters.Tag
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((filters.Page - 1) * filters.PageSize)).
		SetLimit(int64(filters.PageSize))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []Template{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].fill()
	}
	return out, total, nil
}

func (r *mongoRepository) UpdatePlaceholders(ctx context.Context, id primitive.ObjectID, ps []render.Placeholder) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"placeholders": ps,
		"updatedAt":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) UpdateTemplate(ctx context.Context, t *Template) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage bumps the usage counter with $inc so concurrent
// generations never lose an increment
func (r *mongoRepository) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"usageCount": 1}})
	return err
}
