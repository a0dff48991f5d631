package mysql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"testing"
)

func TestMemorySwapRepositoryPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemorySwapRepository(dir)
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	for i, wallet := range []string{"0xAbC", "0xdef", "0xabc"} {
		record := &SwapRecord{RequestID: fmt.Sprintf("req-%d", i), Wallet: wallet, Token: "0x1", Direction: "buy", State: "completed", CreatedAt: int64(i)}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if record.ID != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, record.ID)
		}
	}

	list, err := repo.ListLatest(ctx, "0xABC", 10)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].RequestID != "req-2" || list[1].RequestID != "req-0" {
		t.Fatalf("unexpected wallet history: %+v", list)
	}

	reopened, err := NewMemorySwapRepository(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	all, err := reopened.ListLatest(ctx, "", 2)
	if err != nil {
		t.Fatalf("list after reopen failed: %v", err)
	}
	if len(all) != 2 || all[0].RequestID != "req-2" {
		t.Fatalf("history not restored: %+v", all)
	}
	next := &SwapRecord{RequestID: "req-3"}
	if err := reopened.Save(ctx, next); err != nil || next.ID != 4 {
		t.Fatalf("ids not continued after reopen: id=%d err=%v", next.ID, err)
	}
}

func TestMemorySwapRepositoryClampsLimit(t *testing.T) {
	t.Parallel()

	repo, err := NewMemorySwapRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < MaxHistoryLimit+5; i++ {
		if err := repo.Save(ctx, &SwapRecord{RequestID: fmt.Sprintf("req-%d", i), Wallet: "0xabc", CreatedAt: int64(i)}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	list, err := repo.ListLatest(ctx, "", 1<<62)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != MaxHistoryLimit {
		t.Fatalf("expected %d records, got %d", MaxHistoryLimit, len(list))
	}
	if got := ClampHistoryLimit(0); got != DefaultHistoryLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultHistoryLimit, got)
	}
}

func TestSQLSwapRepositorySave(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t, []mockOperation{
		execOp(insertSwapSQL, mockResult{lastInsertID: 42, rowsAffected: 1}),
	})
	defer mock.assertConsumed(t)
	defer db.Close()

	repo := &SQLSwapRepository{db: db}
	record := &SwapRecord{RequestID: "req", Wallet: "0xAB", Token: "0xCD", Direction: "sell", Success: true, State: "completed",
		TxHash: "0x01", Message: "ok", Warnings: []string{"w"}, CreatedAt: 1}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if record.ID != 42 {
		t.Fatalf("expected id 42, got %d", record.ID)
	}
	args := mock.recordedArgs()
	if len(args) != 1 || args[0][2] != "0xab" || args[0][3] != "0xcd" || args[0][14] != `["w"]` {
		t.Fatalf("unexpected insert args: %v", args)
	}
}

func TestSQLSwapRepositoryListLatest(t *testing.T) {
	t.Parallel()

	columns := []string{"id", "request_id", "task_id", "wallet", "token", "direction", "amount_in", "quoted_out", "min_amount_out",
		"success", "state", "tx_hash", "approval_tx_hash", "error_code", "message", "warnings", "created_at"}
	rows := mockRowsData{
		columns: columns,
		values: [][]driver.Value{
			{int64(2), "r2", "", "0xab", "0x01", "sell", "1", "2", "1", int64(0), "failed", "", "0xaa", "APPROVAL_FAILED", "m2", `["decimals"]`, int64(20)},
			{int64(1), "r1", "t1", "0xab", "0x01", "buy", "1", "2", "1", int64(1), "completed", "0xbb", "", "", "m1", nil, int64(10)},
		},
	}

	db, mock := newMockDB(t, []mockOperation{
		queryOp(selectSwapColumns+` WHERE wallet = ? ORDER BY created_at DESC, id DESC LIMIT ?`, rows),
		queryOp(selectSwapColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, mockRowsData{columns: columns}),
	})
	defer mock.assertConsumed(t)
	defer db.Close()

	repo := &SQLSwapRepository{db: db}
	list, err := repo.ListLatest(context.Background(), "0xAB", 5)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[0].Success || !list[1].Success {
		t.Fatalf("unexpected list: %+v", list)
	}
	if len(list[0].Warnings) != 1 || list[0].Warnings[0] != "decimals" || list[1].Warnings != nil {
		t.Fatalf("unexpected warnings: %+v", list)
	}

	empty, err := repo.ListLatest(context.Background(), "", 1<<62)
	if err != nil || len(empty) != 0 {
		t.Fatalf("unexpected empty list: %+v, %v", empty, err)
	}
	args := mock.recordedArgs()
	if len(args) != 2 || args[0][1] != int64(5) || args[1][0] != int64(MaxHistoryLimit) {
		t.Fatalf("unexpected limit arguments: %+v", args)
	}
}

func TestMigrateAppliesEmbeddedFiles(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{columns: []string{"version"}, values: [][]driver.Value{{"0001"}}}),
		beginOp(),
		execOp(readMigrationStatement("0002_create_task_states.sql"), mockResult{}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, mock := newMockDB(t, ops)
	defer mock.assertConsumed(t)
	defer db.Close()

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
}

func TestMigrateRollsBackFailedStatement(t *testing.T) {
	t.Parallel()

	failing := execOp(readMigrationStatement("0001_create_swap_history.sql"), mockResult{})
	failing.err = fmt.Errorf("syntax error")
	ops := []mockOperation{
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{columns: []string{"version"}}),
		beginOp(),
		failing,
		rollbackOp(),
	}
	db, mock := newMockDB(t, ops)
	defer mock.assertConsumed(t)
	defer db.Close()

	if err := Migrate(context.Background(), db); err == nil || !strings.Contains(err.Error(), "0001_create_swap_history.sql") {
		t.Fatalf("expected migration failure, got %v", err)
	}
}

func readMigrationStatement(name string) string {
	content, err := embeddedMigrations.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	statements := splitSQLStatements(string(content))
	if len(statements) == 0 {
		panic("no statements in migration")
	}
	return statements[0]
}
