package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/pipeline"
)

func activeOrder(dept pipeline.Department) *entity.Order {
	created := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	return &entity.Order{
		OrderID:           "EH001",
		CustomerID:        "CUST-1",
		ModelID:           "M40A5",
		CurrentDepartment: string(dept),
		Status:            entity.StatusActive,
		OrderDate:         created,
		DueDate:           created.AddDate(0, 4, 0),
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

func TestAdvance_StampsDepartureAndMoves(t *testing.T) {
	order := activeOrder(pipeline.Layup)
	now := time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC)

	err := pipeline.Advance(order, "", now)
	require.NoError(t, err)

	assert.Equal(t, string(pipeline.Plugging), order.CurrentDepartment)
	require.NotNil(t, order.LayupCompletedAt)
	assert.Equal(t, now, *order.LayupCompletedAt)
	assert.Nil(t, order.PluggingCompletedAt, "stamp is written on departure, not arrival")
	assert.Equal(t, now, order.UpdatedAt)
}

func TestAdvance_WalksWholePipeline(t *testing.T) {
	order := activeOrder(pipeline.Layup)
	now := order.CreatedAt

	for i := 0; i < len(pipeline.Sequence)-1; i++ {
		now = now.AddDate(0, 0, 7)
		require.NoError(t, pipeline.Advance(order, "", now))
	}

	assert.Equal(t, string(pipeline.Shipping), order.CurrentDepartment)
	for _, d := range pipeline.Sequence[:len(pipeline.Sequence)-1] {
		assert.NotNil(t, pipeline.CompletedAt(order, d), "%s should be stamped", d)
	}
	assert.Nil(t, order.ShippingCompletedAt)
}

func TestAdvance_TerminalDepartmentFails(t *testing.T) {
	order := activeOrder(pipeline.Shipping)

	err := pipeline.Advance(order, "", time.Now())
	require.Error(t, err)

	var invalid *pipeline.ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "EH001", invalid.OrderID)
	assert.Equal(t, string(pipeline.Shipping), invalid.From)
	assert.Equal(t, string(pipeline.Shipping), order.CurrentDepartment, "failed advance must not mutate")
	assert.Nil(t, order.ShippingCompletedAt)
}

func TestAdvance_ExplicitTargetSkips(t *testing.T) {
	order := activeOrder(pipeline.Plugging)
	now := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, pipeline.Advance(order, pipeline.Paint, now))

	assert.Equal(t, string(pipeline.Paint), order.CurrentDepartment)
	require.NotNil(t, order.PluggingCompletedAt)
	assert.Nil(t, order.CNCCompletedAt, "skipped departments get no stamp")
}

func TestAdvance_ExplicitTargetRewinds(t *testing.T) {
	order := activeOrder(pipeline.Paint)
	cncDone := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	order.CNCCompletedAt = &cncDone

	now := time.Date(2025, time.April, 12, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pipeline.Advance(order, pipeline.Finish, now))

	assert.Equal(t, string(pipeline.Finish), order.CurrentDepartment)
	require.NotNil(t, order.PaintCompletedAt)
	assert.Equal(t, cncDone, *order.CNCCompletedAt, "earlier stamps survive a rewind")
}

func TestAdvance_UnknownExplicitTargetFails(t *testing.T) {
	order := activeOrder(pipeline.CNC)

	err := pipeline.Advance(order, pipeline.Department("Warehouse"), time.Now())
	var invalid *pipeline.ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "Warehouse", invalid.Target)
	assert.Equal(t, string(pipeline.CNC), order.CurrentDepartment)
}

func TestScrap_RecordsTerminalState(t *testing.T) {
	order := activeOrder(pipeline.Gunsmith)
	now := time.Date(2025, time.May, 2, 14, 0, 0, 0, time.UTC)

	pipeline.Scrap(order, "cracked stock", "discard", "supervisor-7", now)

	assert.Equal(t, entity.StatusScrapped, order.Status)
	assert.True(t, order.Terminal())
	assert.Equal(t, "cracked stock", order.ScrapReason)
	assert.Equal(t, "discard", order.ScrapDisposition)
	assert.Equal(t, "supervisor-7", order.ScrapAuthorization)
	require.NotNil(t, order.ScrapDate)
	assert.Equal(t, now, *order.ScrapDate)
	assert.Equal(t, string(pipeline.Gunsmith), order.CurrentDepartment, "department shows where the order died")
}

func TestBuildReplacement_CopiesSpecResetsProgress(t *testing.T) {
	scrapped := activeOrder(pipeline.QC)
	scrapped.CustomerPO = "PO-1"
	scrapped.Features = "fluted barrel"
	scrapped.IsAdjustable = true
	layupDone := scrapped.CreatedAt.AddDate(0, 0, 30)
	scrapped.LayupCompletedAt = &layupDone
	pipeline.Scrap(scrapped, "finish blemish", "rework", "supervisor-2", time.Now().UTC())

	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	replacement := pipeline.BuildReplacement(scrapped, "EH044", now)

	assert.Equal(t, "EH044", replacement.OrderID)
	assert.Equal(t, scrapped.CustomerID, replacement.CustomerID)
	assert.Equal(t, scrapped.CustomerPO, replacement.CustomerPO)
	assert.Equal(t, scrapped.ModelID, replacement.ModelID)
	assert.Equal(t, scrapped.Features, replacement.Features)
	assert.True(t, replacement.IsAdjustable)
	assert.Equal(t, scrapped.DueDate, replacement.DueDate)

	assert.Equal(t, string(pipeline.Layup), replacement.CurrentDepartment)
	assert.Equal(t, entity.StatusActive, replacement.Status)
	assert.True(t, replacement.IsReplacement)
	assert.Equal(t, scrapped.OrderID, replacement.ReplacedOrderID)

	assert.Nil(t, replacement.LayupCompletedAt, "pipeline progress does not carry over")
	assert.Empty(t, replacement.ScrapReason)
	assert.Nil(t, replacement.ScrapDate)
	assert.Equal(t, now, replacement.CreatedAt)
}
