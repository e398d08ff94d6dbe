// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package mongodb implements store.CredentialStore on a MongoDB collection.
//
// Each account is one document {UUID: "<id>", data: "<blob>"}. The client is
// created once by Connect and reused; the driver's own pool handles
// reconnection, so operations never re-dial.
package mongodb

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/pkg/errutil"
)

// Default connection settings.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 27017
	DefaultDatabase   = "authgate"
	DefaultCollection = "players"
)

// Document field names.
const (
	fieldUUID = "UUID"
	fieldData = "data"
)

// ErrNotConnected is returned by operations on a store without a client.
var ErrNotConnected = errors.New("mongodb store is not connected")

// Config holds the MongoDB connection parameters.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	Collection string
	TLS        bool
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	return c
}

// URI builds the connection string for cfg. Credentials authenticate against
// the configured database.
func (c Config) URI() string {
	c = c.withDefaults()
	q := url.Values{"tls": []string{strconv.FormatBool(c.TLS)}}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/",
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
		q.Set("authSource", c.Database)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Collection is the subset of *mongo.Collection the store uses.
type Collection interface {
	CountDocuments(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Session is an open client and its players collection.
type Session struct {
	Collection Collection
	Disconnect func(ctx context.Context) error
}

// Dialer opens a Session.
type Dialer func(ctx context.Context, cfg Config) (*Session, error)

// Dial connects to MongoDB, pings the primary and ensures the unique UUID index.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI()))
	if err != nil {
		return nil, oops.With("operation", "connect").Wrap(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // already failing
		return nil, oops.With("operation", "ping").Wrap(err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldUUID, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // already failing
		return nil, oops.With("operation", "create index").Wrap(err)
	}

	return &Session{Collection: coll, Disconnect: client.Disconnect}, nil
}

// Option configures a Store.
type Option func(*Store)

// WithDialer replaces the session dialer.
func WithDialer(d Dialer) Option {
	return func(s *Store) {
		s.dial = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store implements store.CredentialStore using MongoDB.
type Store struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger

	mu      sync.RWMutex
	session *Session
}

// New creates a Store. No connection is made until Connect.
func New(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg.withDefaults(),
		dial:   Dial,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect creates the client. It is a no-op while a client is held.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return nil
	}

	session, err := s.dial(ctx, s.cfg)
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").
			With("backend", store.BackendMongoDB).
			With("host", s.cfg.Host).
			With("database", s.cfg.Database).
			Wrap(err)
	}
	s.session = session
	s.logger.InfoContext(ctx, "connected to mongodb",
		"database", s.cfg.Database,
		"collection", s.cfg.Collection,
	)
	return nil
}

func (s *Store) collection() (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, ErrNotConnected
	}
	return s.session.Collection, nil
}

func byID(id uuid.UUID) bson.D {
	return bson.D{{Key: fieldUUID, Value: id.String()}}
}

func document(id uuid.UUID, data string) bson.D {
	return bson.D{{Key: fieldUUID, Value: id.String()}, {Key: fieldData, Value: data}}
}

// IsUserRegistered reports whether a document exists for id.
func (s *Store) IsUserRegistered(ctx context.Context, id uuid.UUID) bool {
	registered, err := s.exists(ctx, id)
	if err != nil {
		s.logFailure("is user registered", id, err)
		return false
	}
	return registered
}

func (s *Store) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	coll, err := s.collection()
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, byID(id), options.Count().SetLimit(1))
	if err != nil {
		return false, err //nolint:wrapcheck // wrapped by logFailure
	}
	return n > 0, nil
}

// RegisterUser inserts a document for id unless one exists.
func (s *Store) RegisterUser(ctx context.Context, id uuid.UUID, data string) bool {
	registered, err := s.exists(ctx, id)
	if err != nil {
		s.logFailure("register user", id, err)
		return false
	}
	if registered {
		return false
	}

	coll, err := s.collection()
	if err != nil {
		s.logFailure("register user", id, err)
		return false
	}
	if _, err := coll.InsertOne(ctx, document(id, data)); err != nil {
		// A concurrent insert won the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return false
		}
		s.logFailure("register user", id, err)
		return false
	}
	return true
}

// UpdateUserData sets the data of the document for id, if present.
func (s *Store) UpdateUserData(ctx context.Context, id uuid.UUID, data string) {
	coll, err := s.collection()
	if err == nil {
		_, err = coll.UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: bson.D{{Key: fieldData, Value: data}}}})
	}
	if err != nil {
		s.logFailure("update user data", id, err)
	}
}

// DeleteUserData removes the document for id, if present.
func (s *Store) DeleteUserData(ctx context.Context, id uuid.UUID) {
	coll, err := s.collection()
	if err == nil {
		_, err = coll.DeleteOne(ctx, byID(id))
	}
	if err != nil {
		s.logFailure("delete user data", id, err)
	}
}

// GetUserData returns the data stored for id, or "".
func (s *Store) GetUserData(ctx context.Context, id uuid.UUID) string {
	coll, err := s.collection()
	if err != nil {
		s.logFailure("get user data", id, err)
		return ""
	}

	var doc struct {
		Data string `bson:"data"`
	}
	err = coll.FindOne(ctx, byID(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ""
	}
	if err != nil {
		s.logFailure("get user data", id, err)
		return ""
	}
	return doc.Data
}

// SaveBatch upserts all records with one ordered bulk write. The write stops
// at the first failing record; records before it stay written.
func (s *Store) SaveBatch(ctx context.Context, records map[uuid.UUID]store.Record) error {
	if len(records) == 0 {
		return nil
	}

	coll, err := s.collection()
	if err == nil {
		ids := store.SortedIDs(records)
		models := make([]mongo.WriteModel, 0, len(ids))
		for _, id := range ids {
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(byID(id)).
				SetReplacement(document(id, records[id].Data)).
				SetUpsert(true))
		}
		_, err = coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	}
	if err != nil {
		return oops.Code("STORE_BULK_WRITE_FAILED").
			With("backend", store.BackendMongoDB).
			With("batch_size", len(records)).
			Wrap(err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	if s.session.Disconnect != nil {
		if err := s.session.Disconnect(ctx); err != nil {
			s.logger.ErrorContext(ctx, "mongodb client not disconnected cleanly", "error", err)
		}
	}
	s.session = nil
	s.logger.InfoContext(ctx, "mongodb connection closed")
}

// IsClosed reports whether no client is held.
func (s *Store) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session == nil
}

func (s *Store) logFailure(operation string, id uuid.UUID, err error) {
	errutil.LogError(s.logger, "mongodb operation failed",
		oops.Code("STORE_OPERATION_FAILED").
			With("backend", store.BackendMongoDB).
			With("operation", operation).
			With("uuid", id.String()).
			Wrap(err))
}

// Compile-time interface checks.
var (
	_ store.CredentialStore = (*Store)(nil)
	_ Collection            = (*mongo.Collection)(nil)
)
