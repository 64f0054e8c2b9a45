package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding carts.
const CollectionName = "carts"

type mongoCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type cartDocument struct {
	OwnerID       string               `bson:"owner_id"`
	Items         []cartLineDocument   `bson:"items"`
	TotalQuantity int                  `bson:"total_quantity"`
	TotalPrice    primitive.Decimal128 `bson:"total_price"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

type cartLineDocument struct {
	ProductID      string               `bson:"product_id"`
	Name           string               `bson:"name"`
	Image          string               `bson:"image,omitempty"`
	Price          primitive.Decimal128 `bson:"price"`
	Quantity       int                  `bson:"quantity"`
	Stock          int                  `bson:"stock"`
	TotalItemPrice primitive.Decimal128 `bson:"total_item_price"`
}

// MongoStore keeps one document per owner in the carts collection.
type MongoStore struct {
	collection mongoCollection
	now        func() time.Time
}

// NewMongoStore builds a store over collection.
func NewMongoStore(collection mongoCollection) (*MongoStore, error) {
	if collection == nil {
		return nil, fmt.Errorf("mongo collection is required")
	}
	return &MongoStore{collection: collection, now: time.Now}, nil
}

// EnsureIndexes creates the unique owner index and, when ttl is positive, an
// expiry index on updated_at.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection, ttl time.Duration) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("carts_owner_id_key"),
		},
	}
	if ttl > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())).SetName("carts_updated_at_ttl"),
		})
	}
	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, ownerID string) (State, error) {
	var doc cartDocument
	err := s.collection.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Empty(), nil
		}
		return State{}, fmt.Errorf("find cart: %w", err)
	}
	return doc.toState(), nil
}

func (s *MongoStore) Save(ctx context.Context, ownerID string, state State) error {
	doc, err := documentFromState(ownerID, state, s.now().UTC())
	if err != nil {
		return err
	}
	filter := bson.M{"owner_id": ownerID}
	update := bson.M{"$set": doc}
	if _, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"owner_id": ownerID}); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func documentFromState(ownerID string, state State, now time.Time) (cartDocument, error) {
	total, err := toDecimal128(state.TotalPrice)
	if err != nil {
		return cartDocument{}, err
	}
	doc := cartDocument{
		OwnerID:       ownerID,
		Items:         make([]cartLineDocument, 0, len(state.Items)),
		TotalQuantity: state.TotalQuantity,
		TotalPrice:    total,
		UpdatedAt:     now,
	}
	for _, line := range state.Items {
		price, err := toDecimal128(line.Price)
		if err != nil {
			return cartDocument{}, err
		}
		lineTotal, err := toDecimal128(line.TotalItemPrice)
		if err != nil {
			return cartDocument{}, err
		}
		doc.Items = append(doc.Items, cartLineDocument{
			ProductID:      line.ID,
			Name:           line.Name,
			Image:          line.Image,
			Price:          price,
			Quantity:       line.Quantity,
			Stock:          line.Stock,
			TotalItemPrice: lineTotal,
		})
	}
	return doc, nil
}

func (d cartDocument) toState() State {
	state := State{
		Items:         make([]Item, 0, len(d.Items)),
		TotalQuantity: d.TotalQuantity,
		TotalPrice:    fromDecimal128(d.TotalPrice),
	}
	for _, line := range d.Items {
		state.Items = append(state.Items, Item{
			ID:             line.ProductID,
			Name:           line.Name,
			Image:          line.Image,
			Price:          fromDecimal128(line.Price),
			Quantity:       line.Quantity,
			Stock:          line.Stock,
			TotalItemPrice: fromDecimal128(line.TotalItemPrice),
		})
	}
	return state
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	out, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d.String(), err)
	}
	return out, nil
}

// fromDecimal128 yields zero for values that fail to parse; Sanitize then
// repairs the derived totals.
func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
