package certificates

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"certificate-studio/certificate-backend/internal/database"
)

type Repository interface {
	CreateCertificate(ctx context.Context, c *Certificate) error
	GetCertificate(ctx context.Context, id primitive.ObjectID) (*Certificate, error)
	GetByCertificateID(ctx context.Context, certificateID string) (*Certificate, error)
	UpdateCertificate(ctx context.Context, c *Certificate) error
	ListCertificates(ctx context.Context, owner primitive.ObjectID, filters ListFilters) ([]Certificate, int64, error)
	ListAllByOwner(ctx context.Context, owner primitive.ObjectID) ([]Certificate, error)
	DeleteAllByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error)
	IncrementDownloads(ctx context.Context, id primitive.ObjectID) error
	Stats(ctx context.Context, owner primitive.ObjectID) (*Stats, error)
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.CertificatesCollection)}
}

func (r *mongoRepository) CreateCertificate(ctx context.Context, c *Certificate) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, c)
	if database.IsDuplicateKey(err) {
		return ErrDuplicateCertificateID
	}
	return err
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*Certificate, error) {
	var c Certificate
	err := r.coll.FindOne(ctx, filter).Decode(&c)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoRepository) GetCertificate(ctx context.Context, id primitive.ObjectID) (*Certificate, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepository) GetByCertificateID(ctx context.Context, certificateID string) (*Certificate, error) {
	return r.findOne(ctx, bson.M{"certificateId": certificateID})
}

func (r *mongoRepository) UpdateCertificate(ctx context.Context, c *Certificate) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// listFilter hides soft-deleted records always and archived ones unless
// asked for, either by flag or by filtering on the archived status
func listFilter(owner primitive.ObjectID, filters ListFilters) bson.M {
	filter := bson.M{"createdBy": owner, "isActive": true}
	switch {
	case filters.Status != "":
		filter["status"] = filters.Status
	case !filters.IncludeArchived:
		filter["status"] = bson.M{"$ne": StatusArchived}
	}
	if filters.TemplateID != nil {
		filter["templateId"] = *filters.TemplateID
	}
	if filters.Search != "" {
		pattern := regexp.QuoteMeta(filters.Search)
		filter["$or"] = bson.A{
			bson.M{"participantName": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"certificateId": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter
}

// ListCertificates pages newest first. A PageSize of zero returns every match.
func (r *mongoRepository) ListCertificates(ctx context.Context, owner primitive.ObjectID, filters ListFilters) ([]Certificate, int64, error) {
	filter := listFilter(owner, filters)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * filters.PageSize)).SetLimit(int64(filters.PageSize))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []Certificate{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAllByOwner includes archived and soft-deleted records
func (r *mongoRepository) ListAllByOwner(ctx context.Context, owner primitive.ObjectID) ([]Certificate, error) {
	cur, err := r.coll.Find(ctx, bson.M{"createdBy": owner})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Certificate{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoRepository) DeleteAllByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"createdBy": owner})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *mongoRepository) IncrementDownloads(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"downloadCount": 1}})
	return err
}

func (r *mongoRepository) Stats(ctx context.Context, owner primitive.ObjectID) (*Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdBy": owner, "isActive": true}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$status",
			"count":     bson.M{"$sum": 1},
			"downloads": bson.M{"$sum": "$downloadCount"},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status    Status `bson:"_id"`
		Count     int64  `bson:"count"`
		Downloads int64  `bson:"downloads"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := newStats()
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
		stats.TotalDownloads += row.Downloads
	}
	return stats, nil
}

func newStats() *Stats {
	return &Stats{ByStatus: map[Status]int64{
		StatusPending:   0,
		StatusGenerated: 0,
		StatusFailed:    0,
		StatusArchived:  0,
	}}
}
