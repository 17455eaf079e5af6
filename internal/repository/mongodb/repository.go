package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
)

const (
	ledgerCollection = "ledger"
	ledgerDocumentID = "ledger"
)

// ledgerDocument is the single document holding roster and attendance.
type ledgerDocument struct {
	ID        string                                 `bson:"_id"`
	Names     []string                               `bson:"names"`
	Meals     map[models.MealType]*models.MealRecord `bson:"meals"`
	LastReset time.Time                              `bson:"last_reset"`
}

// MongoDBRepository implements repository.Store with one MongoDB document.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: ledgerCollection,
	}, nil
}

// Load fetches the ledger document, returning an empty snapshot when absent.
func (r *MongoDBRepository) Load(ctx context.Context) (models.Snapshot, error) {
	var doc ledgerDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": ledgerDocumentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fromDocument(ledgerDocument{}), nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load ledger document: %w", err)
	}
	return fromDocument(doc), nil
}

// Save replaces the ledger document. A single document write is atomic, so
// roster and attendance always change together.
func (r *MongoDBRepository) Save(ctx context.Context, snapshot models.Snapshot) error {
	doc := toDocument(snapshot)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection().ReplaceOne(ctx, bson.M{"_id": ledgerDocumentID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save ledger document: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

func toDocument(snapshot models.Snapshot) ledgerDocument {
	state := snapshot.State
	state.Normalize()

	names := snapshot.Names
	if names == nil {
		names = []string{}
	}

	return ledgerDocument{
		ID:        ledgerDocumentID,
		Names:     names,
		Meals:     state.Meals,
		LastReset: state.LastReset.UTC(),
	}
}

func fromDocument(doc ledgerDocument) models.Snapshot {
	state := models.LedgerState{Meals: doc.Meals, LastReset: doc.LastReset}
	state.Normalize()

	names := doc.Names
	if names == nil {
		names = []string{}
	}
	return models.Snapshot{Names: names, State: state}
}
