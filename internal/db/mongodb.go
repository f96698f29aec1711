package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abkawan/toybank-ledger/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrEventNotFound is returned when the archive has no event with the given id
var ErrEventNotFound = errors.New("transaction event not found")

// MongoDB archives committed transaction events
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// creates a new MongoDB instance
func NewMongoDB(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongodb: %w", err)
	}

	// pinging the database
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping Mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection("transactions")

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "from_account_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "to_account_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{
			Keys:    bson.D{{Key: "cancels_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: collection,
		now:        time.Now,
	}, nil
}

// closes the mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ArchiveTransaction stores the event under its transaction id. Redelivered events
// replace the earlier copy, so archiving is idempotent.
func (m *MongoDB) ArchiveTransaction(ctx context.Context, event *models.TransactionEvent) error {
	event.ArchivedAt = m.now()

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": event.ID}, event, opts); err != nil {
		return fmt.Errorf("failed to archive transaction: %w", err)
	}
	return nil
}

// GetTransactionByID: retrieves the archived event by transaction id
func (m *MongoDB) GetTransactionByID(ctx context.Context, id string) (*models.TransactionEvent, error) {
	var event models.TransactionEvent
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &event, nil
}

// retrieves the events that touched an account, oldest first
func (m *MongoDB) GetTransactionsByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.TransactionEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, accountFilter(accountID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.TransactionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return events, nil
}

func accountFilter(accountID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"from_account_id": accountID},
		bson.M{"to_account_id": accountID},
	}}
}
