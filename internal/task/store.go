package task

import (
	"context"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/swap"
)

// Store 抽象了任务状态的持久化接口。
//
// Claim 只会把 pending 任务推进到 running；已在运行或已结束的任务不会被再次领取，
// 队列的重复投递因此不会导致重复下单。MarkFailed 总是终态。
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Claim(ctx context.Context, id string) (*Task, error)
	MarkSucceeded(ctx context.Context, id string, result swap.Result) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, result *swap.Result) error
	List(ctx context.Context, opts ListOptions) ([]*Task, error)
	Stats(ctx context.Context, opts ListOptions) (TaskStats, error)
	Close() error
}
