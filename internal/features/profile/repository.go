package profile

import (
	"context"
	"errors"
	"fmt"

	"go-hrflow/internal/database"
	"go-hrflow/internal/features/approval"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProfileRepository interface {
	EnsureIndexes(ctx context.Context) error
	FindByLogin(ctx context.Context, loginID string) (*EmployeeProfile, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*EmployeeProfile, error)
	FindByEmployeeIDs(ctx context.Context, employeeIDs []string) ([]EmployeeProfile, error)
	FindDisplayNames(ctx context.Context, loginIDs []string) (map[string]string, error)
	Upsert(ctx context.Context, profile *EmployeeProfile) error
}

type ProfileRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewProfileRepository(mongodb *database.MongodbDB) ProfileRepository {
	return &ProfileRepositoryImpl{
		Collection: mongodb.DB.Collection("employee_profiles"),
	}
}

func (r *ProfileRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "employee_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "login_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create employee_profiles indexes: %w", err)
	}
	return nil
}

// FindByLogin returns nil, nil when no profile exists
func (r *ProfileRepositoryImpl) FindByLogin(ctx context.Context, loginID string) (*EmployeeProfile, error) {
	return r.findOne(ctx, bson.M{"login_id": loginID})
}

// FindByEmployeeID returns nil, nil when no profile exists
func (r *ProfileRepositoryImpl) FindByEmployeeID(ctx context.Context, employeeID string) (*EmployeeProfile, error) {
	return r.findOne(ctx, bson.M{"employee_id": employeeID})
}

func (r *ProfileRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*EmployeeProfile, error) {
	var p EmployeeProfile
	err := r.Collection.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepositoryImpl) FindByEmployeeIDs(ctx context.Context, employeeIDs []string) ([]EmployeeProfile, error) {
	return r.findMany(ctx, bson.M{"employee_id": bson.M{"$in": employeeIDs}})
}

// FindDisplayNames maps login ids to display names for audit listings
func (r *ProfileRepositoryImpl) FindDisplayNames(ctx context.Context, loginIDs []string) (map[string]string, error) {
	opts := options.Find().SetProjection(bson.M{"login_id": 1, "display_name": 1})
	cursor, err := r.Collection.Find(ctx, bson.M{"login_id": bson.M{"$in": loginIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	names := make(map[string]string, len(loginIDs))
	for cursor.Next(ctx) {
		var p EmployeeProfile
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		names[p.LoginID] = p.DisplayName
	}
	return names, cursor.Err()
}

func (r *ProfileRepositoryImpl) findMany(ctx context.Context, filter bson.M) ([]EmployeeProfile, error) {
	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	profiles := []EmployeeProfile{}
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Upsert writes the profile keyed by employee_id, keeping created_at on updates
func (r *ProfileRepositoryImpl) Upsert(ctx context.Context, p *EmployeeProfile) error {
	filter := bson.M{"employee_id": p.EmployeeID}
	update := bson.M{
		"$set": bson.M{
			"login_id":         p.LoginID,
			"display_name":     p.DisplayName,
			"department":       p.Department,
			"locale":           p.Locale,
			"approval_mode":    p.ApprovalMode,
			"manager_login_id": p.ManagerLoginID,
			"gm_login_id":      p.GMLoginID,
			"coo_login_id":     p.COOLoginID,
			"updated_at":       p.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": p.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := r.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: login %s already belongs to another employee", approval.ErrConflict, p.LoginID)
		}
		return err
	}
	return nil
}
