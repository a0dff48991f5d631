package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/internal/web3"
	"OpenMCP-Swap/pkg/logger"
)

// SubmitRequest 描述一次异步兑换请求。ID 非空时作为幂等键。
type SubmitRequest struct {
	ID        string         `json:"id,omitempty"`
	Wallet    string         `json:"wallet,omitempty"`
	Token     string         `json:"token"`
	AmountIn  string         `json:"amount_in"`
	Direction string         `json:"direction"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Service 负责兑换任务的创建与查询。
type Service struct {
	store    Store
	producer Producer
}

// NewService 构造任务服务。
func NewService(store Store, producer Producer) *Service {
	return &Service{store: store, producer: producer}
}

// Submit 校验请求、创建任务并推送到队列。重复的 ID 直接返回已有任务。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Task, error) {
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")
	}
	task, err := newTask(req)
	if err != nil {
		return nil, err
	}

	if task.ID != "" {
		existing, err := s.store.Get(ctx, task.ID)
		if err == nil {
			return existing, nil
		}
		if !stdErrors.Is(err, ErrTaskNotFound) {
			return nil, err
		}
	} else {
		task.ID = uuid.NewString()
	}

	if err := s.store.Create(ctx, task); err != nil {
		if stdErrors.Is(err, ErrTaskConflict) {
			if existing, getErr := s.store.Get(ctx, task.ID); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, task.ID); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("task_id", task.ID))
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "发布任务到队列失败")
		_ = s.store.MarkFailed(ctx, task.ID, CodeTaskPublish, wrapped.Error(), nil)
		return nil, wrapped
	}
	logger.Audit().Info("兑换任务入队成功",
		slog.String("task_id", task.ID),
		slog.String("wallet", task.Wallet),
		slog.String("token", task.Token),
		slog.String("direction", string(task.Direction)),
		slog.String("amount_in", task.AmountIn),
	)
	return task, nil
}

// newTask 在入队前完成与引擎一致的输入校验，避免无效任务占用队列。
func newTask(req SubmitRequest) (*Task, error) {
	direction, err := swap.ParseDirection(req.Direction)
	if err != nil {
		return nil, xerrors.Wrap(CodeTaskValidation, err, "兑换方向不正确", xerrors.WithMetadata("field", "direction"))
	}
	token := strings.TrimSpace(req.Token)
	if !web3.IsHexAddress(token) {
		return nil, xerrors.New(CodeTaskValidation, "代币地址格式不正确", xerrors.WithMetadata("field", "token"))
	}
	wallet := strings.TrimSpace(req.Wallet)
	if wallet != "" && !web3.IsHexAddress(wallet) {
		return nil, xerrors.New(CodeTaskValidation, "钱包地址格式不正确", xerrors.WithMetadata("field", "wallet"))
	}
	amount := strings.TrimSpace(req.AmountIn)
	if _, err := swap.ParseAmount(amount); err != nil {
		return nil, xerrors.Wrap(CodeTaskValidation, err, "兑换数量不正确", xerrors.WithMetadata("field", "amount_in"))
	}
	return &Task{
		ID:         strings.TrimSpace(req.ID),
		Wallet:     wallet,
		Token:      token,
		AmountIn:   amount,
		Direction:  direction,
		Metadata:   cloneMetadata(req.Metadata),
		Status:     StatusPending,
		MaxRetries: DefaultMaxRetries,
	}, nil
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的任务统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TaskStats, error) {
	if s.store == nil {
		return TaskStats{}, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Close 释放资源。
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	return stdErrors.Join(errs...)
}

// WaitUntilCompleted 轮询任务直到进入终态或 ctx 结束。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Terminal() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
