package alerts

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alertflow/internal/constants"
	"alertflow/pkg/metrics"
)

// MongoStore relies on the partial unique index created by migrations.EnsureAlertIndexes.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection(constants.MongoAlertsCollection),
	}
}

func (s *MongoStore) ExistsOpen(ctx context.Context, organizationID, fingerprint string, statuses []string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveAlertStoreDuration("mongodb", "exists_open", time.Since(start))
	}()

	filter := bson.M{
		"organization_id": organizationID,
		"fingerprint":     fingerprint,
		"status":          bson.M{"$in": statuses},
	}

	n, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		metrics.IncDatabaseQuery("alert-engine", "mongodb", "exists_open", "error")
		return false, fmt.Errorf("failed to check open alerts: %w", err)
	}

	metrics.IncDatabaseQuery("alert-engine", "mongodb", "exists_open", "success")
	return n > 0, nil
}

func (s *MongoStore) Create(ctx context.Context, alert *Alert) error {
	start := time.Now()
	defer func() {
		metrics.ObserveAlertStoreDuration("mongodb", "create", time.Since(start))
	}()

	if _, err := s.collection.InsertOne(ctx, alert); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			metrics.IncDatabaseQuery("alert-engine", "mongodb", "create_alert", "duplicate")
			return ErrDuplicateAlert
		}
		metrics.IncDatabaseQuery("alert-engine", "mongodb", "create_alert", "error")
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	metrics.IncDatabaseQuery("alert-engine", "mongodb", "create_alert", "success")
	return nil
}
