package order_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/config"
	"github.com/Additional-Code/foundry/internal/database"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/identifier"
	"github.com/Additional-Code/foundry/internal/pipeline"
	repoorder "github.com/Additional-Code/foundry/internal/repository/order"
	reporeservation "github.com/Additional-Code/foundry/internal/repository/reservation"
	"github.com/Additional-Code/foundry/internal/schedule"
	serviceorder "github.com/Additional-Code/foundry/internal/service/order"
	"github.com/Additional-Code/foundry/pkg/errorbank"
)

type fixture struct {
	svc          *serviceorder.Service
	orders       *repoorder.Repository
	reservations *reporeservation.Repository
}

func newFixture(t *testing.T) *fixture {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*entity.Order)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*entity.IdentifierReservation)(nil)).Exec(ctx)
	require.NoError(t, err)

	conns := &database.Connections{Writer: db, Reader: db}
	orders := repoorder.NewRepository(conns)
	reservations := reporeservation.NewRepository(conns)
	alloc := identifier.NewAllocator(orders, reservations, zap.NewNop())

	svc := serviceorder.NewService(serviceorder.Params{
		Repository: orders,
		Allocator:  alloc,
		Cache:      nil,
		Config:     config.Config{},
		Logger:     zap.NewNop(),
		Publisher:  nil,
	})
	return &fixture{svc: svc, orders: orders, reservations: reservations}
}

func createParams(due time.Time) serviceorder.CreateParams {
	return serviceorder.CreateParams{
		CustomerID: "CUST-1",
		CustomerPO: "PO-100",
		ModelID:    "M40A5",
		Handedness: "right",
		DueDate:    due,
	}
}

func assertKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind())
}

func TestCreate_AllocatesSequentialIdentifiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().AddDate(0, 4, 0)

	first, err := f.svc.Create(ctx, createParams(due))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, createParams(due))
	require.NoError(t, err)

	prefix := identifier.PeriodCode(time.Now().UTC())
	assert.Equal(t, identifier.FormatIdentifier(prefix, 1), first.OrderID)
	assert.Equal(t, identifier.FormatIdentifier(prefix, 2), second.OrderID)

	assert.Equal(t, string(pipeline.Layup), first.CurrentDepartment)
	assert.Equal(t, entity.StatusActive, first.Status)

	// The reservation backing a created order is marked used.
	res, err := f.reservations.GetByIdentifier(ctx, first.OrderID)
	require.NoError(t, err)
	assert.True(t, res.IsUsed)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, serviceorder.CreateParams{DueDate: time.Now().AddDate(0, 1, 0)})
	assertKind(t, err, errorbank.KindBadRequest)

	_, err = f.svc.Create(ctx, serviceorder.CreateParams{CustomerID: "CUST-1"})
	assertKind(t, err, errorbank.KindBadRequest)
}

func TestGet_Missing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "ZZ999")
	assertKind(t, err, errorbank.KindNotFound)
}

func TestProgress_AdvancesAndStamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createParams(time.Now().UTC().AddDate(0, 4, 0)))
	require.NoError(t, err)

	progressed, err := f.svc.Progress(ctx, created.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.Plugging), progressed.CurrentDepartment)
	assert.NotNil(t, progressed.LayupCompletedAt)

	// Persisted, not just in memory.
	stored, err := f.orders.GetByID(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.Plugging), stored.CurrentDepartment)
}

func TestProgress_ExplicitTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createParams(time.Now().UTC().AddDate(0, 4, 0)))
	require.NoError(t, err)

	moved, err := f.svc.Progress(ctx, created.OrderID, string(pipeline.CNC))
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.CNC), moved.CurrentDepartment)

	_, err = f.svc.Progress(ctx, created.OrderID, "Warehouse")
	assertKind(t, err, errorbank.KindUnprocessableEntity)
}

func TestProgress_TerminalDepartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createParams(time.Now().UTC().AddDate(0, 4, 0)))
	require.NoError(t, err)

	_, err = f.svc.Progress(ctx, created.OrderID, string(pipeline.Shipping))
	require.NoError(t, err)

	_, err = f.svc.Progress(ctx, created.OrderID, "")
	assertKind(t, err, errorbank.KindUnprocessableEntity)
}

func TestScrap_ThenProgressRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createParams(time.Now().UTC().AddDate(0, 4, 0)))
	require.NoError(t, err)

	scrapped, err := f.svc.Scrap(ctx, created.OrderID, "void in layup", "discard", "supervisor-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusScrapped, scrapped.Status)
	assert.Equal(t, "void in layup", scrapped.ScrapReason)

	_, err = f.svc.Progress(ctx, created.OrderID, "")
	assertKind(t, err, errorbank.KindUnprocessableEntity)

	_, err = f.svc.Scrap(ctx, created.OrderID, "again", "", "")
	assertKind(t, err, errorbank.KindUnprocessableEntity)
}

func TestScrap_RequiresReason(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Scrap(context.Background(), "EH001", "", "", "")
	assertKind(t, err, errorbank.KindBadRequest)
}

func TestCreateReplacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createParams(time.Now().UTC().AddDate(0, 4, 0)))
	require.NoError(t, err)

	// Replacement of an in-pipeline order is rejected.
	_, err = f.svc.CreateReplacement(ctx, created.OrderID)
	assertKind(t, err, errorbank.KindUnprocessableEntity)

	_, err = f.svc.Scrap(ctx, created.OrderID, "cracked stock", "discard", "supervisor-1")
	require.NoError(t, err)

	replacement, err := f.svc.CreateReplacement(ctx, created.OrderID)
	require.NoError(t, err)

	assert.NotEqual(t, created.OrderID, replacement.OrderID)
	assert.True(t, replacement.IsReplacement)
	assert.Equal(t, created.OrderID, replacement.ReplacedOrderID)
	assert.Equal(t, created.CustomerID, replacement.CustomerID)
	assert.Equal(t, string(pipeline.Layup), replacement.CurrentDepartment)
	assert.Equal(t, entity.StatusActive, replacement.Status)

	stored, err := f.orders.GetByID(ctx, replacement.OrderID)
	require.NoError(t, err)
	assert.Equal(t, created.OrderID, stored.ReplacedOrderID)
}

func TestPipelineCountsAndDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().AddDate(0, 4, 0)

	first, err := f.svc.Create(ctx, createParams(due))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, createParams(due))
	require.NoError(t, err)

	third, err := f.svc.Create(ctx, createParams(due))
	require.NoError(t, err)
	_, err = f.svc.Progress(ctx, third.OrderID, "")
	require.NoError(t, err)

	_, err = f.svc.Scrap(ctx, first.OrderID, "scrap", "", "")
	require.NoError(t, err)

	counts, err := f.svc.PipelineCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		string(pipeline.Layup):    1,
		string(pipeline.Plugging): 1,
	}, counts)

	details, err := f.svc.PipelineDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details[string(pipeline.Layup)], 1)
	require.Len(t, details[string(pipeline.Plugging)], 1)

	for _, rows := range details {
		for _, row := range rows {
			assert.NotEqual(t, first.OrderID, row.OrderID, "scrapped orders stay off the dashboard")
			assert.Equal(t, schedule.OnSchedule, row.Status)
		}
	}
}
