package identifier_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/identifier"
)

// memStore is a thread-safe in-memory ReservationStore with the same
// uniqueness semantics as the database table.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*entity.IdentifierReservation
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*entity.IdentifierReservation)}
}

func (s *memStore) Insert(_ context.Context, res *entity.IdentifierReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[res.Identifier]; exists {
		return fmt.Errorf("insert reservation %s: %w", res.Identifier, identifier.ErrConflict)
	}
	clone := *res
	s.rows[res.Identifier] = &clone
	return nil
}

func (s *memStore) MaxActiveSequence(_ context.Context, prefix string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, row := range s.rows {
		if row.PeriodPrefix == prefix && !row.IsUsed && row.ExpiresAt.After(now) && row.SequenceNumber > max {
			max = row.SequenceNumber
		}
	}
	return max, nil
}

func (s *memStore) MarkUsed(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return false, nil
	}
	row.IsUsed = true
	row.UsedAt = &now
	return true, nil
}

func (s *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, row := range s.rows {
		if !row.IsUsed && !row.ExpiresAt.After(now) {
			delete(s.rows, id)
			count++
		}
	}
	return count, nil
}

func (s *memStore) seed(res entity.IdentifierReservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[res.Identifier] = &res
}

// seqFunc adapts a function to the SequenceSource interface.
type seqFunc func(ctx context.Context, prefix string) (int, error)

func (f seqFunc) MaxSequence(ctx context.Context, prefix string) (int, error) {
	return f(ctx, prefix)
}

func noIssued() identifier.SequenceSource {
	return seqFunc(func(context.Context, string) (int, error) { return 0, nil })
}

func issuedUpTo(n int) identifier.SequenceSource {
	return seqFunc(func(context.Context, string) (int, error) { return n, nil })
}

var july15 = time.Date(2021, time.July, 15, 10, 30, 0, 0, time.UTC)

func TestAllocate_FirstOfPeriod(t *testing.T) {
	alloc := identifier.NewAllocator(noIssued(), newMemStore(), zap.NewNop())

	id, err := alloc.Allocate(context.Background(), july15)
	require.NoError(t, err)
	assert.Equal(t, "AG001", id)
}

func TestAllocate_SequentialWithinPeriod(t *testing.T) {
	store := newMemStore()
	alloc := identifier.NewAllocator(noIssued(), store, zap.NewNop())
	ctx := context.Background()

	first, err := alloc.Allocate(ctx, july15)
	require.NoError(t, err)
	second, err := alloc.Allocate(ctx, july15.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "AG001", first)
	assert.Equal(t, "AG002", second)
}

func TestAllocate_ContinuesAfterIssuedOrders(t *testing.T) {
	alloc := identifier.NewAllocator(issuedUpTo(41), newMemStore(), zap.NewNop())

	id, err := alloc.Allocate(context.Background(), july15)
	require.NoError(t, err)
	assert.Equal(t, "AG042", id)
}

func TestAllocate_PeriodRolloverResetsSequence(t *testing.T) {
	store := newMemStore()
	// July already issued orders; August starts fresh.
	source := seqFunc(func(_ context.Context, prefix string) (int, error) {
		if prefix == "AG" {
			return 17, nil
		}
		return 0, nil
	})
	alloc := identifier.NewAllocator(source, store, zap.NewNop())
	ctx := context.Background()

	julyID, err := alloc.Allocate(ctx, july15)
	require.NoError(t, err)
	assert.Equal(t, "AG018", julyID)

	aug1 := time.Date(2021, time.August, 1, 8, 0, 0, 0, time.UTC)
	augID, err := alloc.Allocate(ctx, aug1)
	require.NoError(t, err)
	assert.Equal(t, "AH001", augID)
}

func TestAllocate_ReissuesExpiredReservation(t *testing.T) {
	store := newMemStore()
	store.seed(entity.IdentifierReservation{
		Identifier:     "AG001",
		PeriodPrefix:   "AG",
		SequenceNumber: 1,
		ReservedAt:     july15.Add(-time.Hour),
		ExpiresAt:      july15.Add(-55 * time.Minute),
	})
	alloc := identifier.NewAllocator(noIssued(), store, zap.NewNop())

	id, err := alloc.Allocate(context.Background(), july15)
	require.NoError(t, err)
	assert.Equal(t, "AG001", id, "expired reservation's sequence should be reclaimed")
}

func TestAllocate_UsedReservationIsPermanent(t *testing.T) {
	store := newMemStore()
	usedAt := july15.Add(-time.Hour)
	store.seed(entity.IdentifierReservation{
		Identifier:     "AG001",
		PeriodPrefix:   "AG",
		SequenceNumber: 1,
		ReservedAt:     july15.Add(-2 * time.Hour),
		ExpiresAt:      july15.Add(-time.Hour), // long past expiry
		IsUsed:         true,
		UsedAt:         &usedAt,
	})
	// The order backing the used reservation is durably persisted.
	alloc := identifier.NewAllocator(issuedUpTo(1), store, zap.NewNop())

	id, err := alloc.Allocate(context.Background(), july15)
	require.NoError(t, err)
	assert.Equal(t, "AG002", id)

	// The sweep never reclaims a used row, no matter how old.
	removed, err := alloc.SweepExpired(context.Background(), july15)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// racingStore loses the first insert and bumps the visible max sequence, as if
// a concurrent allocator claimed several numbers in between.
type racingStore struct {
	*memStore
	mu       sync.Mutex
	inserts  int
	claimSeq int
}

func (s *racingStore) Insert(ctx context.Context, res *entity.IdentifierReservation) error {
	s.mu.Lock()
	s.inserts++
	first := s.inserts == 1
	s.mu.Unlock()
	if first {
		s.memStore.seed(entity.IdentifierReservation{
			Identifier:     res.Identifier,
			PeriodPrefix:   res.PeriodPrefix,
			SequenceNumber: s.claimSeq,
			ReservedAt:     res.ReservedAt,
			ExpiresAt:      res.ExpiresAt,
		})
		return fmt.Errorf("insert reservation %s: %w", res.Identifier, identifier.ErrConflict)
	}
	return s.memStore.Insert(ctx, res)
}

func TestAllocate_ConflictRetriesRereadSequence(t *testing.T) {
	store := &racingStore{memStore: newMemStore(), claimSeq: 7}
	alloc := identifier.NewAllocator(noIssued(), store, zap.NewNop())

	id, err := alloc.Allocate(context.Background(), july15)
	require.NoError(t, err)

	// After the lost race the allocator must pick up the winner's sequence
	// rather than blindly incrementing its first candidate.
	assert.Equal(t, "AG008", id)
	assert.Equal(t, 2, store.inserts)
}

// conflictStore refuses every insert.
type conflictStore struct{ *memStore }

func (s *conflictStore) Insert(_ context.Context, res *entity.IdentifierReservation) error {
	return fmt.Errorf("insert reservation %s: %w", res.Identifier, identifier.ErrConflict)
}

func TestAllocate_FallsBackAfterExhaustedRetries(t *testing.T) {
	store := &conflictStore{memStore: newMemStore()}
	alloc := identifier.NewAllocator(noIssued(), store, zap.NewNop(), identifier.WithMaxAttempts(3))

	id, err := alloc.Allocate(context.Background(), july15)
	require.NoError(t, err, "exhausted retries degrade, they do not fail")

	expected := fmt.Sprintf("AG%06d", july15.Unix()%1_000_000)
	assert.Equal(t, expected, id)
}

func TestAllocate_Concurrent(t *testing.T) {
	store := newMemStore()
	alloc := identifier.NewAllocator(noIssued(), store, zap.NewNop(), identifier.WithMaxAttempts(100))

	const workers = 25
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := alloc.Allocate(context.Background(), july15)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, id := range ids {
		assert.False(t, seen[id], "identifier %s issued twice", id)
		seen[id] = true
	}
}

func TestMarkUsed_MissingRowIsNotFatal(t *testing.T) {
	alloc := identifier.NewAllocator(noIssued(), newMemStore(), zap.NewNop())

	// Must not panic or error; the order row is already durable by the time
	// this runs.
	alloc.MarkUsed(context.Background(), "AG999", july15)
}

func TestSweepExpired_CountsRemovals(t *testing.T) {
	store := newMemStore()
	store.seed(entity.IdentifierReservation{
		Identifier: "AG001", PeriodPrefix: "AG", SequenceNumber: 1,
		ExpiresAt: july15.Add(-time.Minute),
	})
	store.seed(entity.IdentifierReservation{
		Identifier: "AG002", PeriodPrefix: "AG", SequenceNumber: 2,
		ExpiresAt: july15.Add(time.Minute),
	})
	alloc := identifier.NewAllocator(noIssued(), store, zap.NewNop())

	removed, err := alloc.SweepExpired(context.Background(), july15)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
