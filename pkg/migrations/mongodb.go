package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alertflow/internal/constants"
)

// EnsureAlertIndexes creates the alert indexes, including the partial unique index that
// keeps one open alert per fingerprint. Partial indexes with $in need MongoDB 6.0 or newer.
func EnsureAlertIndexes(ctx context.Context, db *mongo.Database, openStatuses []string) error {
	collection := db.Collection(constants.MongoAlertsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "fingerprint", Value: 1}},
			Options: options.Index().
				SetName("alerts_open_fingerprint_idx").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": openStatuses}}),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "rule_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_alerts_rule"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
