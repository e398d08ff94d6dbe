// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package postgres implements store.CredentialStore on a single PostgreSQL
// connection.
//
// Every operation first makes sure a connection handle is held, dialing a new
// one (and re-creating the table if needed) when it is absent. A failure that
// leaves the connection unusable drops the handle, so the next operation
// reconnects. Reconnect-and-operate is serialized per Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/pkg/errutil"
)

// Default connection settings.
const (
	DefaultHost  = "localhost"
	DefaultPort  = 5432
	DefaultTable = "players"
)

// Config holds the PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string
	TLS      bool
}

// DSN builds the connection string for cfg.
func (c Config) DSN() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	sslmode := "disable"
	if c.TLS {
		sslmode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{sslmode}}.Encode(),
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	return u.String()
}

// Conn is the subset of *pgx.Conn the store uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Dialer opens a new connection.
type Dialer func(ctx context.Context, dsn string) (Conn, error)

// Dial opens a real PostgreSQL connection.
func Dial(ctx context.Context, dsn string) (Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by connectLocked
	}
	return conn, nil
}

// Option configures a Store.
type Option func(*Store)

// WithDialer replaces the connection dialer.
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

// Store implements store.CredentialStore using PostgreSQL.
type Store struct {
	cfg    Config
	dsn    string
	table  string
	dial   Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn Conn
}

// New creates a Store. No connection is made until Connect or the first operation.
func New(cfg Config, opts ...Option) *Store {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	s := &Store{
		cfg:    cfg,
		dsn:    cfg.DSN(),
		table:  pgx.Identifier{cfg.Table}.Sanitize(),
		dial:   Dial,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect establishes the connection and creates the table if it is absent.
// It is a no-op while a connection is held.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	return s.connectLocked(ctx)
}

func (s *Store) connectLocked(ctx context.Context) error {
	s.logger.DebugContext(ctx, "connecting to postgres",
		"host", s.cfg.Host,
		"database", s.cfg.Database,
		"table", s.cfg.Table,
	)

	conn, err := s.dial(ctx, s.dsn)
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").
			With("backend", store.BackendPostgres).
			With("host", s.cfg.Host).
			With("database", s.cfg.Database).
			Wrap(err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf(createTableSQL, s.table)); err != nil {
		if closeErr := conn.Close(ctx); closeErr != nil {
			s.logger.DebugContext(ctx, "error closing connection after setup failure", "error", closeErr)
		}
		return oops.Code("STORE_CONNECT_FAILED").
			With("backend", store.BackendPostgres).
			With("operation", "create table").
			With("table", s.cfg.Table).
			Wrap(err)
	}

	s.conn = conn
	return nil
}

// withConn runs fn on a live connection, reconnecting first if needed.
func (s *Store) withConn(ctx context.Context, fn func(Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		// Callers log the failure with their operation attached.
		if err := s.connectLocked(ctx); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "reconnected to postgres", "database", s.cfg.Database)
	}

	err := fn(s.conn)
	if err != nil && unusable(err) {
		s.dropLocked(ctx)
	}
	return err
}

// unusable reports whether err means the connection cannot serve another query.
func unusable(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code) ||
			pgErr.Code == pgerrcode.UndefinedTable
	}
	// Anything the server did not report itself is a transport failure.
	return true
}

func (s *Store) dropLocked(ctx context.Context) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(ctx); err != nil {
		s.logger.DebugContext(ctx, "error closing broken postgres connection", "error", err)
	}
	s.conn = nil
	s.logger.WarnContext(ctx, "dropped postgres connection, will reconnect on next use")
}

// IsUserRegistered reports whether id has a row.
func (s *Store) IsUserRegistered(ctx context.Context, id uuid.UUID) bool {
	var exists bool
	err := s.withConn(ctx, func(c Conn) error {
		return c.QueryRow(ctx, fmt.Sprintf(existsSQL, s.table), id.String()).Scan(&exists)
	})
	if err != nil {
		s.logFailure("is user registered", id, err)
		return false
	}
	return exists
}

// RegisterUser inserts a row for id unless one exists.
func (s *Store) RegisterUser(ctx context.Context, id uuid.UUID, data string) bool {
	var inserted bool
	err := s.withConn(ctx, func(c Conn) error {
		tag, err := c.Exec(ctx, fmt.Sprintf(insertSQL, s.table), id.String(), data)
		if err != nil {
			return err //nolint:wrapcheck // wrapped by logFailure
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		s.logFailure("register user", id, err)
		return false
	}
	return inserted
}

// UpdateUserData replaces the data of the row for id, if present.
func (s *Store) UpdateUserData(ctx context.Context, id uuid.UUID, data string) {
	err := s.withConn(ctx, func(c Conn) error {
		_, err := c.Exec(ctx, fmt.Sprintf(updateSQL, s.table), data, id.String())
		return err //nolint:wrapcheck // wrapped by logFailure
	})
	if err != nil {
		s.logFailure("update user data", id, err)
	}
}

// DeleteUserData removes the row for id, if present.
func (s *Store) DeleteUserData(ctx context.Context, id uuid.UUID) {
	err := s.withConn(ctx, func(c Conn) error {
		_, err := c.Exec(ctx, fmt.Sprintf(deleteSQL, s.table), id.String())
		return err //nolint:wrapcheck // wrapped by logFailure
	})
	if err != nil {
		s.logFailure("delete user data", id, err)
	}
}

// GetUserData returns the data stored for id, or "".
func (s *Store) GetUserData(ctx context.Context, id uuid.UUID) string {
	var data string
	err := s.withConn(ctx, func(c Conn) error {
		return c.QueryRow(ctx, fmt.Sprintf(selectSQL, s.table), id.String()).Scan(&data)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ""
	}
	if err != nil {
		s.logFailure("get user data", id, err)
		return ""
	}
	return data
}

// SaveBatch upserts all records with one statement. The statement is atomic:
// either every record is written or none is.
func (s *Store) SaveBatch(ctx context.Context, records map[uuid.UUID]store.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := store.SortedIDs(records)
	uuids := make([]string, len(ids))
	data := make([]string, len(ids))
	for i, id := range ids {
		uuids[i] = id.String()
		data[i] = records[id].Data
	}

	err := s.withConn(ctx, func(c Conn) error {
		_, err := c.Exec(ctx, fmt.Sprintf(saveBatchSQL, s.table), uuids, data)
		return err //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return oops.Code("STORE_BULK_WRITE_FAILED").
			With("backend", store.BackendPostgres).
			With("batch_size", len(records)).
			Wrap(err)
	}
	return nil
}

// Close releases the connection.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(ctx); err != nil {
		s.logger.ErrorContext(ctx, "postgres connection not closed cleanly", "error", err)
	}
	s.conn = nil
	s.logger.InfoContext(ctx, "postgres connection closed")
}

// IsClosed reports whether no connection is held.
func (s *Store) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == nil
}

func (s *Store) logFailure(operation string, id uuid.UUID, err error) {
	errutil.LogError(s.logger, "postgres operation failed",
		oops.Code("STORE_OPERATION_FAILED").
			With("backend", store.BackendPostgres).
			With("operation", operation).
			With("uuid", id.String()).
			Wrap(err))
}

// Compile-time interface check.
var _ store.CredentialStore = (*Store)(nil)
