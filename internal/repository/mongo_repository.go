package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// abandonedCartTTL drops carts nobody touched for 90 days.
const abandonedCartTTL = 90 * 24 * 60 * 60

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
		now:        time.Now,
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Snapshot, error) {
	var doc cartDocument

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, errors.Wrap(err, "failed to get cart")
	}

	snap, err := doc.snapshot()
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode cart")
	}
	return &snap, nil
}

// UpsertCart replaces the stored cart of snap.UserID. created_at is only
// written on insert; updated_at is stamped here. A pending checkout is left
// in place.
func (m *mongoRepository) UpsertCart(ctx context.Context, snap domain.Snapshot) error {
	return m.upsert(ctx, snap, nil)
}

func (m *mongoRepository) SaveCheckout(ctx context.Context, event domain.CheckoutEvent) error {
	if event.EventID == "" {
		return errors.New("checkout event has no id")
	}
	outbox := &outboxDocument{EventID: event.EventID, OccurredAt: event.OccurredAt.UTC()}
	if err := m.upsert(ctx, event.Cart, outbox); err != nil {
		return errors.Wrapf(err, "save checkout %s", event.EventID)
	}
	return nil
}

func (m *mongoRepository) PendingCheckouts(ctx context.Context, limit int) ([]domain.CheckoutEvent, error) {
	filter := bson.M{"outbox": bson.M{"$exists": true}}
	opts := options.Find().
		SetSort(bson.D{{Key: "outbox.occurred_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find pending checkouts")
	}
	defer cursor.Close(ctx)

	var events []domain.CheckoutEvent
	for cursor.Next(ctx) {
		var doc cartDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode pending checkout")
		}
		event, err := doc.checkoutEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate pending checkouts")
	}
	return events, nil
}

func (m *mongoRepository) MarkCheckoutPublished(ctx context.Context, userID, eventID string) error {
	filter := bson.M{"user_id": userID, "outbox.event_id": eventID}
	update := bson.M{"$unset": bson.M{"outbox": ""}}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return errors.Wrapf(err, "failed to mark checkout %s published", eventID)
	}
	return nil
}

func (m *mongoRepository) upsert(ctx context.Context, snap domain.Snapshot, outbox *outboxDocument) error {
	now := m.now().UTC()
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	snap.UpdatedAt = now

	doc, err := newCartDocument(snap)
	if err != nil {
		return errors.Wrap(err, "failed to encode cart")
	}
	doc.Outbox = outbox

	set, err := toSetDocument(doc)
	if err != nil {
		return err
	}

	filter := bson.M{"user_id": snap.UserID}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": createdAt},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return errors.Wrap(err, "failed to upsert cart")
	}

	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "failed to delete cart")
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(abandonedCartTTL),
		},
		{
			Keys:    bson.D{{Key: "outbox.occurred_at", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// CreateIndexes is exposed for callers holding the interface.
func CreateIndexes(ctx context.Context, repo CartRepository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}

// toSetDocument marshals doc without created_at, which $setOnInsert owns.
func toSetDocument(doc cartDocument) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal cart")
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cart")
	}
	delete(set, "created_at")
	return set, nil
}
