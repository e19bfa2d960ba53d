package entityclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/leapconn/pkg/datadir"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// OpenFunc opens a store connection for a provider connection string.
type OpenFunc func(ctx context.Context, p provider.Provider, connectionString string, expander datadir.Expander) (*sql.DB, error)

// DefaultOpenTimeout bounds one shared open attempt.
const DefaultOpenTimeout = 30 * time.Second

// Group is one pooled store connection.
type Group struct {
	ID       uuid.UUID
	Provider string
	Key      string
	DB       *sql.DB
}

// Pool shares one *sql.DB per provider and parsed provider connection
// string. Strings that differ only in whitespace, keyword case or quoting
// share a group. Safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	groups map[string]*Group
	closed bool

	flight   singleflight.Group
	expander datadir.Expander
	cache    *ParseCache
	logger   *slog.Logger
	open     OpenFunc

	openTimeout time.Duration
}

// NewPool creates a pool that expands |DataDirectory| with expander.
// If logger is nil, a discard logger is used.
func NewPool(expander datadir.Expander, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{
		groups:   make(map[string]*Group),
		expander: expander,
		cache:    NewParseCache(0),
		logger:   logger,
		open:     provider.Open,

		openTimeout: DefaultOpenTimeout,
	}
}

// Expander returns the DataDirectory expander used by the pool.
func (p *Pool) Expander() datadir.Expander {
	return p.expander
}

// Acquire returns the pooled *sql.DB for the provider connection string,
// opening it on first use. Concurrent callers for the same group share one
// open attempt. The attempt does not inherit cancellation from the caller
// that started it; each caller stops waiting when its own ctx is done.
func (p *Pool) Acquire(ctx context.Context, prov provider.Provider, connectionString string) (*sql.DB, error) {
	name := strings.ToLower(prov.Name())
	opts, err := p.cache.Parse(name, connectionString, prov.Synonyms())
	if err != nil {
		return nil, fmt.Errorf("invalid %s connection string: %w", prov.Name(), err)
	}
	key := name + "\x00" + opts.Chain().PoolKey()

	if g, err := p.lookup(key); g != nil || err != nil {
		if err != nil {
			return nil, err
		}
		return g.DB, nil
	}

	ch := p.flight.DoChan(key, func() (any, error) {
		if g, err := p.lookup(key); g != nil || err != nil {
			return g, err
		}

		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.openTimeout)
		defer cancel()
		db, err := p.open(openCtx, prov, connectionString, p.expander)
		if err != nil {
			return nil, err
		}

		g := &Group{ID: uuid.New(), Provider: name, Key: key, DB: db}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = db.Close()
			return nil, ErrPoolClosed
		}
		p.groups[key] = g

		p.logger.Info("opened store connection",
			slog.String("group", g.ID.String()),
			slog.String("provider", name),
			slog.String("connection", opts.Redacted()))
		return g, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Group).DB, nil
	}
}

func (p *Pool) lookup(key string) (*Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.groups[key], nil
}

// Groups returns the open groups ordered by provider and key.
func (p *Pool) Groups() []Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Group, 0, len(p.groups))
	for _, g := range p.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// Len returns the number of open groups.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.groups)
}

// Close closes every pooled connection. Acquire fails afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for key, g := range p.groups {
		p.logger.Debug("closing store connection", slog.String("group", g.ID.String()))
		if err := g.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close group %s: %w", g.ID, err))
		}
		delete(p.groups, key)
	}
	return errors.Join(errs...)
}
