package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"OpenMCP-Swap/internal/swap"
)

func seedTasks(t *testing.T, store *MemoryStore, tasks ...*Task) {
	t.Helper()
	for _, task := range tasks {
		if task.MaxRetries == 0 {
			task.MaxRetries = DefaultMaxRetries
		}
		if err := store.Create(context.Background(), task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
	}
}

func setUpdated(store *MemoryStore, stamps map[string]time.Time) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, ts := range stamps {
		store.tasks[id].UpdatedAt = ts.Unix()
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-2 * time.Minute)

	seedTasks(t, store,
		&Task{ID: "t1", Token: testToken, Direction: swap.Buy, Status: StatusPending},
		&Task{ID: "t2", Token: testToken, Direction: swap.Sell, Status: StatusPending},
		&Task{ID: "t3", Token: "0x9999999999999999999999999999999999999999", Direction: swap.Buy, Status: StatusPending},
	)
	if err := store.MarkFailed(ctx, "t2", swap.CodeQuoteFailed, "Failed to get quote", nil); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "t3", swap.Result{Success: true, TxHash: "0xfeed"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	setUpdated(store, map[string]time.Time{
		"t1": base,
		"t2": base.Add(30 * time.Second),
		"t3": base.Add(60 * time.Second),
	})

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t3" {
		t.Fatalf("expected newest task first, got %+v", all)
	}

	asc, _ := store.List(ctx, buildListOptions([]ListOption{WithSortOrder(SortByUpdatedAsc), WithLimit(1), WithOffset(1)}))
	if len(asc) != 1 || asc[0].ID != "t2" {
		t.Fatalf("unexpected page: %+v", asc)
	}

	failed, _ := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if len(failed) != 1 || failed[0].ID != "t2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	withResult, _ := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if len(withResult) != 1 || withResult[0].ID != "t3" {
		t.Fatalf("unexpected result list: %+v", withResult)
	}

	sells, _ := store.List(ctx, buildListOptions([]ListOption{WithDirection(swap.Sell)}))
	if len(sells) != 1 || sells[0].ID != "t2" {
		t.Fatalf("unexpected sells: %+v", sells)
	}

	byToken, _ := store.List(ctx, buildListOptions([]ListOption{WithToken(testToken)}))
	if len(byToken) != 2 {
		t.Fatalf("expected 2 tasks for token, got %d", len(byToken))
	}

	byHash, _ := store.List(ctx, buildListOptions([]ListOption{WithQuery("FEED")}))
	if len(byHash) != 1 || byHash[0].ID != "t3" {
		t.Fatalf("unexpected query match: %+v", byHash)
	}

	recent, _ := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(base.Add(15 * time.Second))}))
	if len(recent) != 2 {
		t.Fatalf("expected 2 tasks to match since filter, got %d", len(recent))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-3 * time.Minute)

	seedTasks(t, store,
		&Task{ID: "a", Token: testToken, Direction: swap.Buy, Status: StatusPending},
		&Task{ID: "b", Token: testToken, Direction: swap.Buy, Status: StatusPending},
		&Task{ID: "c", Token: testToken, Direction: swap.Sell, Status: StatusPending},
	)
	if err := store.MarkFailed(ctx, "b", swap.CodePoolNotFound, "Failed to find a suitable pool", nil); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c", swap.Result{Success: true}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	setUpdated(store, map[string]time.Time{
		"a": base,
		"b": base.Add(30 * time.Second),
		"c": base.Add(2 * time.Minute),
	})

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() || stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected range: %+v", stats)
	}

	withoutResults, _ := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(false)}))
	if withoutResults.Total != 2 || withoutResults.Pending != 1 || withoutResults.Failed != 1 {
		t.Fatalf("unexpected stats without result: %+v", withoutResults)
	}

	empty, _ := store.Stats(ctx, buildListOptions([]ListOption{WithWallet("0x0000000000000000000000000000000000000001")}))
	if empty.Total != 0 || empty.OldestUpdatedAt != 0 || empty.NewestUpdatedAt != 0 {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}
}

func TestMemoryStoreClaimGuards(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedTasks(t, store, &Task{ID: "x", Token: testToken, Direction: swap.Buy, Status: StatusPending})

	claimed, err := store.Claim(ctx, "x")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed task: %+v", claimed)
	}
	if _, err := store.Claim(ctx, "x"); !errors.Is(err, ErrTaskConflict) {
		t.Fatalf("running task: expected conflict, got %v", err)
	}
	if err := store.MarkSucceeded(ctx, "x", swap.Result{Success: true}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if _, err := store.Claim(ctx, "x"); !errors.Is(err, ErrTaskCompleted) {
		t.Fatalf("finished task: expected completed, got %v", err)
	}
	if _, err := store.Claim(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !IsTaskError(ErrTaskCompleted, CodeTaskCompleted) || IsTaskError(ErrTaskCompleted, CodeTaskConflict) {
		t.Fatalf("IsTaskError mismatch")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedTasks(t, store, &Task{ID: "y", Token: testToken, Direction: swap.Sell, Status: StatusPending, Metadata: map[string]any{"source": "api"}})
	if err := store.MarkSucceeded(ctx, "y", swap.Result{Success: true, Warnings: []string{"decimals fallback"}}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	got, _ := store.Get(ctx, "y")
	got.Metadata["source"] = "mutated"
	got.Result.Warnings[0] = "mutated"

	again, _ := store.Get(ctx, "y")
	if again.Metadata["source"] != "api" || again.Result.Warnings[0] != "decimals fallback" {
		t.Fatalf("store leaked internal state: %+v", again)
	}
}
