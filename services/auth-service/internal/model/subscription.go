package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Subscription billing statuses.
const (
	SubscriptionStatusTrial    = "trial"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription represents a company's billing state.
type Subscription struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	CompanyID        bson.ObjectID `bson:"company_id"`
	Plan             string        `bson:"plan"`
	Status           string        `bson:"status"`
	CurrentPeriodEnd time.Time     `bson:"current_period_end"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}
