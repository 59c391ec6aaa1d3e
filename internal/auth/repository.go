package auth

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"certificate-studio/certificate-backend/internal/database"
)

type Repository interface {
	CreateAdmin(ctx context.Context, admin *Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	GetAdminByID(ctx context.Context, id primitive.ObjectID) (*Admin, error)
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.AdminsCollection)}
}

func (r *mongoRepository) CreateAdmin(ctx context.Context, admin *Admin) error {
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, admin)
	if database.IsDuplicateKey(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *mongoRepository) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoRepository) GetAdminByID(ctx context.Context, id primitive.ObjectID) (*Admin, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*Admin, error) {
	var admin Admin
	err := r.coll.FindOne(ctx, filter).Decode(&admin)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *mongoRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}
