package order_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/foundry/internal/database"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/pipeline"
	"github.com/Additional-Code/foundry/internal/repository/order"
)

func newTestRepo(t *testing.T) *order.Repository {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.NewCreateTable().Model((*entity.Order)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return order.NewRepository(&database.Connections{Writer: db, Reader: db})
}

func testOrder(id string) *entity.Order {
	now := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	return &entity.Order{
		OrderID:           id,
		CustomerID:        "CUST-1",
		ModelID:           "M40A5",
		CurrentDepartment: string(pipeline.Layup),
		Status:            entity.StatusActive,
		OrderDate:         now,
		DueDate:           now.AddDate(0, 3, 0),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestCreateAndGetByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := testOrder("EH001")
	require.NoError(t, repo.Create(ctx, created))

	got, err := repo.GetByID(ctx, "EH001")
	require.NoError(t, err)
	assert.Equal(t, "EH001", got.OrderID)
	assert.Equal(t, "CUST-1", got.CustomerID)
	assert.Equal(t, string(pipeline.Layup), got.CurrentDepartment)
}

func TestGetByID_Missing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "EH999")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	o := testOrder("EH001")
	require.NoError(t, repo.Create(ctx, o))

	now := time.Date(2025, time.August, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pipeline.Advance(o, "", now))
	require.NoError(t, repo.Update(ctx, o))

	got, err := repo.GetByID(ctx, "EH001")
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.Plugging), got.CurrentDepartment)
	require.NotNil(t, got.LayupCompletedAt)
	assert.True(t, got.LayupCompletedAt.Equal(now))
}

func TestUpdate_MissingRow(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Update(context.Background(), testOrder("EH404"))
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestGetActive_ExcludesTerminal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testOrder("EH001")))
	require.NoError(t, repo.Create(ctx, testOrder("EH002")))

	scrapped := testOrder("EH003")
	scrapped.Status = entity.StatusScrapped
	require.NoError(t, repo.Create(ctx, scrapped))

	cancelled := testOrder("EH004")
	cancelled.Status = entity.StatusCancelled
	require.NoError(t, repo.Create(ctx, cancelled))

	fulfilled := testOrder("EH005")
	fulfilled.Status = entity.StatusFulfilled
	require.NoError(t, repo.Create(ctx, fulfilled))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "EH001", active[0].OrderID)
	assert.Equal(t, "EH002", active[1].OrderID)
	assert.Equal(t, "EH005", active[2].OrderID)
}

func TestGetByDepartment(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inLayup := testOrder("EH001")
	require.NoError(t, repo.Create(ctx, inLayup))

	inCNC := testOrder("EH002")
	inCNC.CurrentDepartment = string(pipeline.CNC)
	require.NoError(t, repo.Create(ctx, inCNC))

	got, err := repo.GetByDepartment(ctx, string(pipeline.CNC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EH002", got[0].OrderID)
}

func TestMaxSequence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"AG001", "AG002", "AG017"} {
		require.NoError(t, repo.Create(ctx, testOrder(id)))
	}
	// Different period sharing a leading letter must not bleed in.
	require.NoError(t, repo.Create(ctx, testOrder("AGB099")))

	max, err := repo.MaxSequence(ctx, "AG")
	require.NoError(t, err)
	assert.Equal(t, 17, max)

	max, err = repo.MaxSequence(ctx, "AH")
	require.NoError(t, err)
	assert.Zero(t, max)
}

func TestMaxSequence_WideSequencesCompareNumerically(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Lexically "AG999" > "AG1000"; numerically 1000 wins.
	require.NoError(t, repo.Create(ctx, testOrder("AG999")))
	require.NoError(t, repo.Create(ctx, testOrder("AG1000")))

	max, err := repo.MaxSequence(ctx, "AG")
	require.NoError(t, err)
	assert.Equal(t, 1000, max)
}

func TestMaxSequence_IgnoresUnparseableIdentifiers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testOrder("AG003")))
	// Fallback identifiers parse fine; malformed legacy rows are skipped.
	require.NoError(t, repo.Create(ctx, testOrder("AG-LEGACY")))

	max, err := repo.MaxSequence(ctx, "AG")
	require.NoError(t, err)
	assert.Equal(t, 3, max)
}
