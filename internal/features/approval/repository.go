package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-hrflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is the storage contract of the engine. Every mutation is a single
// conditional write; a write whose precondition no longer holds returns errStale.
type Repository interface {
	EnsureIndexes(ctx context.Context) error
	Insert(ctx context.Context, req *Request) error
	FindByID(ctx context.Context, id string) (*Request, error)
	ApplyDecision(ctx context.Context, id primitive.ObjectID, t *Transition) (*Request, error)
	ApplyCancel(ctx context.Context, id primitive.ObjectID, t *CancelTransition) (*Request, error)
	ApplyEdit(ctx context.Context, id primitive.ObjectID, requesterLoginID string, subject *Subject, naturalKey NaturalKey, at time.Time) (*Request, error)
	List(ctx context.Context, q Query) ([]Request, error)
	Count(ctx context.Context, q Query) (int64, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	FindStalePending(ctx context.Context, updatedBefore time.Time) ([]Request, error)
}

type ApprovalRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewApprovalRepository(mongodb *database.MongodbDB) Repository {
	return &ApprovalRepositoryImpl{
		Collection: mongodb.DB.Collection("approval_requests"),
	}
}

// EnsureIndexes creates the partial unique natural-key index backing the duplicate guard
func (r *ApprovalRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	if _, err := r.Collection.Indexes().CreateMany(ctx, requestIndexes()); err != nil {
		return fmt.Errorf("create approval_requests indexes: %w", err)
	}
	return nil
}

func requestIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "natural_key.employee_id", Value: 1},
				{Key: "natural_key.date_key", Value: 1},
				{Key: "natural_key.variant", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_live_natural_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"live": true}),
		},
		{Keys: bson.D{{Key: "requester_login_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "manager_login_id", Value: 1}, {Key: "reached_stages", Value: 1}}},
		{Keys: bson.D{{Key: "gm_login_id", Value: 1}, {Key: "reached_stages", Value: 1}}},
		{Keys: bson.D{{Key: "coo_login_id", Value: 1}, {Key: "reached_stages", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
}

func (r *ApprovalRepositoryImpl) Insert(ctx context.Context, req *Request) error {
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	if _, err := r.Collection.InsertOne(ctx, req); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: a live %s request already exists for %s", ErrDuplicateRequest, req.Kind, req.NaturalKey.DateKey)
		}
		return err
	}
	return nil
}

func (r *ApprovalRepositoryImpl) FindByID(ctx context.Context, id string) (*Request, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var req Request
	if err := r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &req, nil
}

func (r *ApprovalRepositoryImpl) ApplyDecision(ctx context.Context, id primitive.ObjectID, t *Transition) (*Request, error) {
	filter, update := decisionWrite(id, t)
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *ApprovalRepositoryImpl) ApplyCancel(ctx context.Context, id primitive.ObjectID, t *CancelTransition) (*Request, error) {
	filter, update := cancelWrite(id, t)
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *ApprovalRepositoryImpl) ApplyEdit(ctx context.Context, id primitive.ObjectID, requesterLoginID string, subject *Subject, naturalKey NaturalKey, at time.Time) (*Request, error) {
	filter, update := editWrite(id, requesterLoginID, subject, naturalKey, at)
	req, err := r.findOneAndUpdate(ctx, filter, update)
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%w: a live request already exists for %s", ErrDuplicateRequest, naturalKey.DateKey)
	}
	return req, err
}

// decisionWrite matches only while the request is still at the expected status
// and the actor's slot at that stage is pending; approvals.$ is that slot.
func decisionWrite(id primitive.ObjectID, t *Transition) (bson.M, bson.M) {
	filter := bson.M{
		"_id":    id,
		"status": t.Expected,
		"approvals": bson.M{"$elemMatch": bson.M{
			"role":     t.Stage,
			"login_id": t.ActorLoginID,
			"status":   SlotPending,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":               t.Next,
			"live":                 t.Next.IsLive(),
			"acted":                true,
			"updated_at":           t.At,
			"approvals.$.status":   t.SlotStatus,
			"approvals.$.acted_at": t.At,
			"approvals.$.note":     t.Note,
		},
	}
	if next, ok := t.Opens(); ok {
		update["$addToSet"] = bson.M{"reached_stages": next}
	}
	return filter, update
}

func cancelWrite(id primitive.ObjectID, t *CancelTransition) (bson.M, bson.M) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": PendingStatuses}}
	update := bson.M{"$set": bson.M{
		"status":       StatusCancelled,
		"live":         false,
		"cancelled_at": t.At,
		"cancelled_by": t.CancelledBy,
		"updated_at":   t.At,
	}}
	return filter, update
}

// editWrite matches only an owned, pending request on which no slot was acted
func editWrite(id primitive.ObjectID, requesterLoginID string, subject *Subject, naturalKey NaturalKey, at time.Time) (bson.M, bson.M) {
	filter := bson.M{
		"_id":                id,
		"requester_login_id": requesterLoginID,
		"status":             bson.M{"$in": PendingStatuses},
		"acted":              false,
		"approvals": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$or": bson.A{
			bson.M{"status": bson.M{"$ne": SlotPending}},
			bson.M{"acted_at": bson.M{"$ne": nil}},
		}}}},
	}
	update := bson.M{"$set": bson.M{
		"subject":     subject.Fields,
		"summary":     subject.Summary,
		"natural_key": naturalKey,
		"updated_at":  at,
	}}
	return filter, update
}

func (r *ApprovalRepositoryImpl) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*Request, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var req Request
	err := r.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errStale
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ApprovalRepositoryImpl) List(ctx context.Context, q Query) ([]Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cursor, err := r.Collection.Find(ctx, queryFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	requests := []Request{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *ApprovalRepositoryImpl) Count(ctx context.Context, q Query) (int64, error) {
	return r.Collection.CountDocuments(ctx, queryFilter(q))
}

func (r *ApprovalRepositoryImpl) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"kind": "$kind", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":    0,
			"kind":   "$_id.kind",
			"status": "$_id.status",
			"count":  1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "kind", Value: 1}, {Key: "status", Value: 1}}}},
	}
	cursor, err := r.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := []StatusCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *ApprovalRepositoryImpl) FindStalePending(ctx context.Context, updatedBefore time.Time) ([]Request, error) {
	filter := bson.M{
		"status":     bson.M{"$in": PendingStatuses},
		"updated_at": bson.M{"$lt": updatedBefore},
	}
	cursor, err := r.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	requests := []Request{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

var participantField = map[Role]string{
	RoleManager: "manager_login_id",
	RoleGM:      "gm_login_id",
	RoleCOO:     "coo_login_id",
}

// queryFilter translates a visibility Query into a Mongo filter
func queryFilter(q Query) bson.M {
	filter := bson.M{}
	if q.Kind != "" {
		filter["kind"] = q.Kind
	}
	if q.RequesterLoginID != "" {
		filter["requester_login_id"] = q.RequesterLoginID
	}
	if q.EmployeeID != "" {
		filter["employee_id"] = q.EmployeeID
	}
	if q.Participant != nil {
		filter[participantField[q.Participant.Role]] = q.Participant.LoginID
	}
	if len(q.Statuses) == 1 {
		filter["status"] = q.Statuses[0]
	} else if len(q.Statuses) > 1 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if q.ReachedStage != "" {
		filter["reached_stages"] = q.ReachedStage
	}
	if q.CreatedFrom != nil || q.CreatedTo != nil {
		created := bson.M{}
		if q.CreatedFrom != nil {
			created["$gte"] = *q.CreatedFrom
		}
		if q.CreatedTo != nil {
			created["$lt"] = *q.CreatedTo
		}
		filter["created_at"] = created
	}
	return filter
}
