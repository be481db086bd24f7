package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/bondageclub/server/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// emailField is the key probed by HasEmail. Accounts are written with "Email";
// the probe has always used "mail" and clients depend on the resulting answer.
const emailField = "mail"

// Options configures the MongoDB connection.
type Options struct {
	URI            string
	Database       string
	Collection     string
	MinPool        uint64
	MaxPool        uint64
	ConnectTimeout time.Duration
}

// Store is the MongoDB-backed account collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

// Open connects, pings and ensures the unique indexes. Any failure here is
// fatal for the caller.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetAppName("bondageclub-server").
		SetConnectTimeout(opts.ConnectTimeout).
		// Decode nested client payloads as maps so they re-encode as JSON objects.
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if opts.MinPool > 0 {
		clientOptions.SetMinPoolSize(opts.MinPool)
	}
	if opts.MaxPool > 0 {
		clientOptions.SetMaxPoolSize(opts.MaxPool)
	}
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.Debug("mongo connection created", zap.String("address", evt.Address))
			case event.ConnectionClosed:
				logger.Debug("mongo connection closed",
					zap.String("address", evt.Address), zap.String("reason", evt.Reason))
			}
		},
	})

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
		logger: logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("mongo connected",
		zap.String("database", opts.Database),
		zap.String("collection", opts.Collection))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "AccountName", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("accounts_account_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "MemberNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("accounts_member_number_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create indexes: %w", err)
	}
	return nil
}

func (s *Store) FindAccount(ctx context.Context, accountName string) (*model.Account, error) {
	var acc model.Account
	err := s.coll.FindOne(ctx, bson.D{{Key: "AccountName", Value: accountName}}).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find account: %w", err)
	}
	acc.Normalize()
	return &acc, nil
}

func (s *Store) HasEmail(ctx context.Context, accountName string) (bool, error) {
	filter := bson.D{
		{Key: "AccountName", Value: accountName},
		{Key: emailField, Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}},
	}
	err := s.coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongo email status: %w", err)
	}
	return true, nil
}

func (s *Store) InsertAccount(ctx context.Context, acc *model.Account) error {
	if _, err := s.coll.InsertOne(ctx, acc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrDuplicate
		}
		return fmt.Errorf("mongo insert account: %w", err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, accountName string, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	update := bson.D{{Key: "$set", Value: bson.M(set)}}
	if _, err := s.coll.UpdateOne(ctx, bson.D{{Key: "AccountName", Value: accountName}}, update); err != nil {
		return fmt.Errorf("mongo update account: %w", err)
	}
	return nil
}

func (s *Store) MaxMemberNumber(ctx context.Context) (uint32, bool, error) {
	filter := bson.D{{Key: "MemberNumber", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}}}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "MemberNumber", Value: -1}}).
		SetProjection(bson.D{{Key: "MemberNumber", Value: 1}})

	var doc struct {
		MemberNumber uint32 `bson:"MemberNumber"`
	}
	err := s.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mongo max member number: %w", err)
	}
	return doc.MemberNumber, true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("closing mongo connection")
	return s.client.Disconnect(ctx)
}
