package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/model"
)

// SubscriptionRepository defines the interface for subscription-related
// database operations.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) (*model.Subscription, error)
	GetSubscriptionByCompanyID(ctx context.Context, companyID string) (*model.Subscription, error)
}

const subscriptionCollection = "subscriptions"

type subscriptionMongoRepository struct {
	db *mongo.Database
}

func NewSubscriptionMongoRepository(db *mongo.Database) SubscriptionRepository {
	return &subscriptionMongoRepository{db: db}
}

func (r *subscriptionMongoRepository) CreateSubscription(
	ctx context.Context,
	sub *model.Subscription,
) (*model.Subscription, error) {
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	result, err := r.db.Collection(subscriptionCollection).InsertOne(ctx, sub)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		sub.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return sub, nil
}

func (r *subscriptionMongoRepository) GetSubscriptionByCompanyID(
	ctx context.Context,
	companyID string,
) (*model.Subscription, error) {
	objectID, err := bson.ObjectIDFromHex(companyID)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(subscriptionCollection).FindOne(ctx, bson.M{"company_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var sub model.Subscription
	if err := result.Decode(&sub); err != nil {
		return nil, err
	}

	return &sub, nil
}
