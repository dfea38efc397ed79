package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
)

// ProfileRepositoryMongo implements domain.ProfileRepository using MongoDB.
type ProfileRepositoryMongo struct {
	collection *mongo.Collection
}

// NewProfileRepositoryMongo creates a new ProfileRepositoryMongo and ensures
// the unique constraint backing upsert atomicity.
func NewProfileRepositoryMongo(ctx context.Context, db *mongo.Database) (*ProfileRepositoryMongo, error) {
	repo := &ProfileRepositoryMongo{
		collection: db.Collection(ProfilesCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			// At most one profile per (provider, resource owner id) pair.
			// The upsert path relies on this, not on read-then-write.
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "resource_owner_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "guid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for profiles collection (might already exist)")
	}

	return repo, nil
}

// FindByResourceOwner looks up the profile for (provider, resourceOwnerID).
// Returns (nil, nil) when no profile exists.
func (r *ProfileRepositoryMongo) FindByResourceOwner(ctx context.Context, provider, resourceOwnerID string) (*domain.Profile, error) {
	var profile domain.Profile
	filter := bson.M{"provider": provider, "resource_owner_id": resourceOwnerID}
	err := r.collection.FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		log.Error().Err(err).Str("provider", provider).Str("resourceOwnerID", resourceOwnerID).
			Msg("Error getting profile by resource owner from MongoDB")
		return nil, clerrors.NewStorage("profile lookup failed", err)
	}
	return &profile, nil
}

// FindByGUID looks up a profile by its GUID. Returns (nil, nil) on miss.
func (r *ProfileRepositoryMongo) FindByGUID(ctx context.Context, guid string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.collection.FindOne(ctx, bson.M{"guid": guid}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		log.Error().Err(err).Str("guid", guid).Msg("Error getting profile by GUID from MongoDB")
		return nil, clerrors.NewStorage("profile lookup failed", err)
	}
	return &profile, nil
}

// Upsert inserts or updates the profile for (provider, resourceOwnerID) in a
// single atomic operation and returns the resulting record. A repeated login
// by the same external user never creates a second row.
func (r *ProfileRepositoryMongo) Upsert(ctx context.Context, provider, resourceOwnerID, refreshToken string, owner domain.ResourceOwnerData) (*domain.Profile, error) {
	filter := bson.M{"provider": provider, "resource_owner_id": resourceOwnerID}

	set := bson.M{
		"resource_owner_data": owner,
		"lastupdate":          time.Now().UTC(),
	}
	// Providers often omit the refresh token on re-authentication; an empty
	// value must not clobber the stored one.
	if refreshToken != "" {
		set["refresh_token"] = refreshToken
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"guid":    uuid.NewString(),
			"enabled": true,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var profile domain.Profile
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&profile); err != nil {
		log.Error().Err(err).Str("provider", provider).Str("resourceOwnerID", resourceOwnerID).
			Msg("Error upserting profile in MongoDB")
		return nil, clerrors.NewStorage("profile upsert failed", err)
	}
	return &profile, nil
}

// SetEnabled flips the enabled flag. Disabled profiles never authenticate.
func (r *ProfileRepositoryMongo) SetEnabled(ctx context.Context, provider, resourceOwnerID string, enabled bool) error {
	filter := bson.M{"provider": provider, "resource_owner_id": resourceOwnerID}
	update := bson.M{"$set": bson.M{"enabled": enabled, "lastupdate": time.Now().UTC()}}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		log.Error().Err(err).Str("provider", provider).Str("resourceOwnerID", resourceOwnerID).
			Msg("Error setting profile enabled flag in MongoDB")
		return clerrors.NewStorage("profile update failed", err)
	}
	return nil
}

// SetPassword stores the salted hash for a local profile, creating the
// profile when it does not exist yet.
func (r *ProfileRepositoryMongo) SetPassword(ctx context.Context, resourceOwnerID, passwordHash string) error {
	filter := bson.M{"provider": domain.LocalProviderName, "resource_owner_id": resourceOwnerID}
	update := bson.M{
		"$set": bson.M{
			"password":   passwordHash,
			"lastupdate": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"guid":    uuid.NewString(),
			"enabled": true,
		},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		log.Error().Err(err).Str("resourceOwnerID", resourceOwnerID).
			Msg("Error setting local profile password in MongoDB")
		return clerrors.NewStorage("profile update failed", err)
	}
	return nil
}

var _ domain.ProfileRepository = (*ProfileRepositoryMongo)(nil)
