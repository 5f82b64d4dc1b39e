//go:build integration

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"libraflow/pkg/testutil/containers"
)

func TestMigrateIsIdempotent(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, pg.DB))
	require.NoError(t, Migrate(ctx, pg.DB))

	var n int
	require.NoError(t, pg.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('events','items','members','reservations','transactions','notifications')`))
	require.Equal(t, 6, n)
}
