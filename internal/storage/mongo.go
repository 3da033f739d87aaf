package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

const defaultMongoCollection = "tracker_groups"

// groupDoc is one group with its accounts in insertion order.
type groupDoc struct {
	Group    string            `bson:"_id"`
	Accounts []*social.Account `bson:"accounts"`
	Updated  time.Time         `bson:"updated_at"`
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    logx.Logger
}

func openMongo(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	dbName := strings.TrimSpace(cfg.Database)
	if dbName == "" {
		return nil, errors.New("mongo database is required")
	}
	collName := strings.TrimSpace(cfg.Collection)
	if collName == "" {
		collName = defaultMongoCollection
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("connected to mongodb", logx.String("database", dbName), logx.String("collection", collName))

	return &mongoStore{
		client: client,
		coll:   client.Database(dbName).Collection(collName),
		log:    log,
	}, nil
}

func (s *mongoStore) Load(ctx context.Context) (social.Registry, error) {
	if s == nil || s.coll == nil {
		return social.Registry{}, ErrClosed
	}
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
	}
	defer cursor.Close(ctx)

	var docs []groupDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
	}
	reg := social.Registry{}
	for _, d := range docs {
		reg[d.Group] = d.Accounts
	}
	reg.Normalize()
	return reg, nil
}

// Save upserts one document per group, then removes groups no longer present.
func (s *mongoStore) Save(ctx context.Context, reg social.Registry) error {
	if s == nil || s.coll == nil {
		return ErrClosed
	}
	now := time.Now().UTC()
	groups := reg.Groups()
	opts := options.Replace().SetUpsert(true)
	for _, g := range groups {
		doc := groupDoc{Group: g, Accounts: reg[g], Updated: now}
		if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": g}, doc, opts); err != nil {
			return &social.PersistenceError{Op: "save", Err: err}
		}
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": groups}}); err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *mongoStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
