package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Company represents a tenant. Every user belongs to exactly one company.
type Company struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Name      string        `bson:"name"`
	Timezone  string        `bson:"timezone"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}
