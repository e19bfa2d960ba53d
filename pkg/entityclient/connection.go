package entityclient

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// State is the state of a Connection.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Connection is an entity client connection. It resolves its connection
// string eagerly and opens the store connection through a Pool.
type Connection struct {
	mu       sync.Mutex
	resolver *Resolver
	pool     *Pool
	logger   *slog.Logger

	connectionString string
	settings         *Settings
	metadata         []string

	state    State
	provider provider.Provider
	db       *sql.DB
}

// NewConnection creates a closed connection with no connection string.
// If logger is nil, a discard logger is used.
func NewConnection(resolver *Resolver, pool *Pool, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connection{
		resolver: resolver,
		pool:     pool,
		logger:   logger,
		settings: &Settings{},
	}
}

// ChangeConnectionString resolves and installs a new connection string.
// It fails with ErrConnectionOpen while the connection is open and leaves
// the current settings in place when resolution fails.
func (c *Connection) ChangeConnectionString(connectionString string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		return ErrConnectionOpen
	}

	settings, err := c.resolver.Resolve(connectionString)
	if err != nil {
		return err
	}

	c.connectionString = connectionString
	c.settings = settings
	c.metadata = nil
	return nil
}

// ConnectionString returns the connection string as supplied.
func (c *Connection) ConnectionString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionString
}

// Settings returns the resolved settings.
func (c *Connection) Settings() *Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// State returns the connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open looks up the store provider, acquires its pooled *sql.DB and pings it.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		return ErrConnectionOpen
	}
	if c.settings == nil || c.settings.IsEmpty() {
		return ErrNoConnectionString
	}

	p, err := provider.New(c.settings.Provider, c.logger)
	if err != nil {
		return err
	}

	metadata := make([]string, 0, len(c.settings.Metadata))
	for _, path := range c.settings.Metadata {
		expanded, err := c.pool.Expander().Expand(KeywordMetadata, path)
		if err != nil {
			return err
		}
		metadata = append(metadata, expanded)
	}

	db, err := c.pool.Acquire(ctx, p, c.settings.ProviderConnectionString)
	if err != nil {
		return fmt.Errorf("failed to open store connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s: %w", p.Name(), err)
	}

	c.provider = p
	c.db = db
	c.metadata = metadata
	c.state = StateOpen
	c.logger.Debug("connection opened",
		slog.String("provider", p.Name()),
		slog.String("name", c.settings.Name))
	return nil
}

// StoreDB returns the store connection of an open connection.
func (c *Connection) StoreDB() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, ErrConnectionClosed
	}
	return c.db, nil
}

// Provider returns the store provider of an open connection.
func (c *Connection) Provider() (provider.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, ErrConnectionClosed
	}
	return c.provider, nil
}

// MetadataPaths returns the metadata paths with |DataDirectory| expanded.
// They are available once the connection has been opened.
func (c *Connection) MetadataPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.metadata...)
}

// Close marks the connection closed. The store connection stays in the
// pool for reuse. Closing a closed connection is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	c.db = nil
	c.provider = nil
	c.logger.Debug("connection closed")
	return nil
}
