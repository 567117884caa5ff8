package nft

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "nft_certificates"

type Store struct {
	coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(collectionName)}
}

// EnsureIndexes makes token ids unique and owner lookups cheap.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_email", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}

// Insert stores a validated certificate verbatim.
func (s *Store) Insert(ctx context.Context, c *Certificate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateTokenID
	}
	return err
}

func (s *Store) FindByOwner(ctx context.Context, email string) ([]Certificate, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"owner_email": email},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	out := []Certificate{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindByTokenID(ctx context.Context, tokenID string) (Certificate, error) {
	var c Certificate
	err := s.coll.FindOne(ctx, bson.M{"token_id": tokenID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Certificate{}, ErrNotFound
	}
	return c, err
}
