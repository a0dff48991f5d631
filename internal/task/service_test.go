package task

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "OpenMCP-Swap/internal/errors"
)

type failingProducer struct{}

func (failingProducer) Publish(context.Context, string) error { return errors.New("broker down") }

func (failingProducer) Close() error { return nil }

func TestSubmitValidatesRequest(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(4))
	cases := map[string]SubmitRequest{
		"direction": {Token: testToken, AmountIn: "1", Direction: "hold"},
		"token":     {Token: "0x123", AmountIn: "1", Direction: "buy"},
		"amount":    {Token: testToken, AmountIn: "-1", Direction: "buy"},
		"zero":      {Token: testToken, AmountIn: "0", Direction: "sell"},
		"wallet":    {Wallet: "alice", Token: testToken, AmountIn: "1", Direction: "buy"},
	}
	for name, req := range cases {
		if _, err := service.Submit(context.Background(), req); !xerrors.IsCode(err, CodeTaskValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(4)
	service := NewService(NewMemoryStore(), queue)

	req := submitRequest("1")
	req.ID = "swap-1"
	first, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.MaxRetries != DefaultMaxRetries || first.Status != StatusPending {
		t.Fatalf("unexpected task: %+v", first)
	}
	req.AmountIn = "9"
	second, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.ID != first.ID || second.AmountIn != "1" {
		t.Fatalf("expected existing task, got %+v", second)
	}
	if len(queue.ch) != 1 {
		t.Fatalf("task should be published once, queue has %d", len(queue.ch))
	}
}

func TestSubmitPublishFailureMarksTaskFailed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := NewService(store, failingProducer{})

	req := submitRequest("1")
	req.ID = "swap-2"
	if _, err := service.Submit(ctx, req); !xerrors.IsCode(err, CodeTaskPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}
	task, err := store.Get(ctx, "swap-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.Status != StatusFailed || task.ErrorCode != string(CodeTaskPublish) {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestWaitUntilCompleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	service := NewService(store, queue)

	task, err := service.Submit(ctx, submitRequest("1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	go func() {
		_ = NewProcessor(&fakeExecutor{}, store, queue).handle(ctx, task.ID)
	}()
	done, err := service.WaitUntilCompleted(ctx, task.ID, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded {
		t.Fatalf("unexpected status %s", done.Status)
	}
}
