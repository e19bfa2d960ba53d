package entityclient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapconn/internal/testutil"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

const testEntityConnection = "metadata=|DataDirectory|model.csdl|res://*/Model.ssdl;provider=" + testProviderName + ";provider connection string='data source=app.db'"

func newTestConnection(t *testing.T) (*Connection, *Pool, string) {
	t.Helper()
	root := t.TempDir()
	logger := testutil.NewTestLogger(t)

	pool := NewPool(datadir.Expander{Root: root}, logger)
	pool.open = (&mockOpener{}).open
	t.Cleanup(func() { _ = pool.Close() })

	return NewConnection(NewResolver(testNamed(), logger), pool, logger), pool, root
}

func TestConnection_OpenClose(t *testing.T) {
	ctx := context.Background()
	conn, pool, root := newTestConnection(t)

	require.NoError(t, conn.ChangeConnectionString(testEntityConnection))
	assert.Equal(t, testEntityConnection, conn.ConnectionString())
	assert.Equal(t, StateClosed, conn.State())

	_, err := conn.StoreDB()
	assert.ErrorIs(t, err, ErrConnectionClosed)

	require.NoError(t, conn.Open(ctx))
	assert.Equal(t, StateOpen, conn.State())
	assert.Equal(t, "open", conn.State().String())

	db, err := conn.StoreDB()
	require.NoError(t, err)
	require.NotNil(t, db)

	p, err := conn.Provider()
	require.NoError(t, err)
	assert.Equal(t, testProviderName, p.Name())

	assert.Equal(t, []string{filepath.Join(root, "model.csdl"), "res://*/Model.ssdl"}, conn.MetadataPaths())

	assert.ErrorIs(t, conn.Open(ctx), ErrConnectionOpen)

	require.NoError(t, conn.Close())
	assert.Equal(t, StateClosed, conn.State())
	assert.NoError(t, conn.Close(), "closing twice is a no-op")

	// Reopening reuses the pooled store connection.
	require.NoError(t, conn.Open(ctx))
	again, err := conn.StoreDB()
	require.NoError(t, err)
	assert.Same(t, db, again)
	assert.Equal(t, 1, pool.Len())
}

func TestConnection_ChangeConnectionString(t *testing.T) {
	ctx := context.Background()
	conn, _, _ := newTestConnection(t)

	require.NoError(t, conn.ChangeConnectionString(testEntityConnection))
	require.NoError(t, conn.Open(ctx))

	assert.ErrorIs(t, conn.ChangeConnectionString("name=shop"), ErrConnectionOpen)
	assert.Equal(t, testEntityConnection, conn.ConnectionString())

	require.NoError(t, conn.Close())

	// A failed change keeps the current settings.
	err := conn.ChangeConnectionString("metadata=m")
	var missing *MissingKeywordError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, testEntityConnection, conn.ConnectionString())
	assert.Equal(t, testProviderName, conn.Settings().Provider)

	require.NoError(t, conn.ChangeConnectionString("name=shop"))
	assert.Equal(t, "shop", conn.Settings().Name)
	assert.Equal(t, "sqlite", conn.Settings().Provider)
}

func TestConnection_OpenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no connection string", func(t *testing.T) {
		conn, _, _ := newTestConnection(t)
		assert.ErrorIs(t, conn.Open(ctx), ErrNoConnectionString)

		require.NoError(t, conn.ChangeConnectionString(""))
		assert.ErrorIs(t, conn.Open(ctx), ErrNoConnectionString)
	})

	t.Run("unknown provider", func(t *testing.T) {
		conn, _, _ := newTestConnection(t)
		require.NoError(t, conn.ChangeConnectionString("metadata=m;provider=nosuchdb"))

		err := conn.Open(ctx)
		var unknown *provider.UnknownProviderError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "nosuchdb", unknown.Name)
		assert.Equal(t, StateClosed, conn.State())
	})

	t.Run("metadata escapes data directory", func(t *testing.T) {
		conn, _, _ := newTestConnection(t)
		require.NoError(t, conn.ChangeConnectionString("metadata=|DataDirectory|../m.csdl;provider="+testProviderName))

		var invalid *datadir.InvalidValueError
		require.ErrorAs(t, conn.Open(ctx), &invalid)
		assert.Equal(t, KeywordMetadata, invalid.Keyword)
	})

	t.Run("bad provider connection string", func(t *testing.T) {
		conn, _, _ := newTestConnection(t)
		require.NoError(t, conn.ChangeConnectionString("metadata=m;provider="+testProviderName+";provider connection string='port=1'"))

		err := conn.Open(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open store connection")
		assert.Equal(t, StateClosed, conn.State())
	})
}
