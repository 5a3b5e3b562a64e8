package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents an employee account in the workforce system.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	CompanyID    bson.ObjectID `bson:"company_id"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash"`
	FirstName    string        `bson:"first_name"`
	LastName     string        `bson:"last_name"`
	Role         string        `bson:"role"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}
