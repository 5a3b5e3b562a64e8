package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/model"
)

// CompanyRepository defines the interface for company-related database operations.
type CompanyRepository interface {
	CreateCompany(ctx context.Context, company *model.Company) (*model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
}

const companyCollection = "companies"

type companyMongoRepository struct {
	db *mongo.Database
}

func NewCompanyMongoRepository(db *mongo.Database) CompanyRepository {
	return &companyMongoRepository{db: db}
}

func (r *companyMongoRepository) CreateCompany(ctx context.Context, company *model.Company) (*model.Company, error) {
	now := time.Now()
	company.CreatedAt = now
	company.UpdatedAt = now

	result, err := r.db.Collection(companyCollection).InsertOne(ctx, company)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		company.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return company, nil
}

func (r *companyMongoRepository) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(companyCollection).FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var company model.Company
	if err := result.Decode(&company); err != nil {
		return nil, err
	}

	return &company, nil
}
