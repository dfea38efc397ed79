package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
)

// SessionRepositoryMongo implements domain.SessionRepository using MongoDB.
type SessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSessionRepositoryMongo creates a new SessionRepositoryMongo and ensures
// the indexes backing the single-session-per-profile invariant and the
// access-token lookup.
func NewSessionRepositoryMongo(ctx context.Context, db *mongo.Database) (*SessionRepositoryMongo, error) {
	repo := &SessionRepositoryMongo{
		collection: db.Collection(SessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			// One active session per profile; upserts replace in place.
			Keys:    bson.D{{Key: "guid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "access_token", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for sessions collection (might already exist)")
	}

	return repo, nil
}

// Upsert replaces the session for session.GUID in place, or inserts it.
func (r *SessionRepositoryMongo) Upsert(ctx context.Context, session *domain.Session) error {
	filter := bson.M{"guid": session.GUID}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, session, opts); err != nil {
		log.Error().Err(err).Str("guid", session.GUID).Msg("Error upserting session in MongoDB")
		return clerrors.NewStorage("session upsert failed", err)
	}
	return nil
}

// FindByAccessToken looks up the session holding accessToken. Returns
// (nil, nil) when no session matches.
func (r *SessionRepositoryMongo) FindByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"access_token": accessToken}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		log.Error().Err(err).Msg("Error getting session by access token from MongoDB")
		return nil, clerrors.NewStorage("session lookup failed", err)
	}
	return &session, nil
}

// Delete removes the session holding accessToken. Deleting a token that no
// longer exists is not an error.
func (r *SessionRepositoryMongo) Delete(ctx context.Context, accessToken string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"access_token": accessToken}); err != nil {
		log.Error().Err(err).Msg("Error deleting session from MongoDB")
		return clerrors.NewStorage("session delete failed", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is older than maxAge ago.
func (r *SessionRepositoryMongo) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires": bson.M{"$lt": cutoff}})
	if err != nil {
		log.Error().Err(err).Msg("Error deleting expired sessions from MongoDB")
		return 0, clerrors.NewStorage("expired session sweep failed", err)
	}
	if res.DeletedCount > 0 {
		log.Info().Int64("count", res.DeletedCount).Msg("Removed expired sessions")
	}
	return res.DeletedCount, nil
}

var _ domain.SessionRepository = (*SessionRepositoryMongo)(nil)
