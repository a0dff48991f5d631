package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"OpenMCP-Swap/internal/agent"
	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/observability/alerting"
	"OpenMCP-Swap/internal/observability/metrics"
	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/pkg/logger"
)

// Executor 定义了处理器所需的兑换能力，由 agent.Agent 实现。
type Executor interface {
	Swap(ctx context.Context, req agent.SwapRequest) (swap.Result, error)
}

// Processor 负责从队列消费兑换任务并交给 Agent 执行。
// 每个任务最多执行一次：失败即终态，不会重新入队。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		workerCount: 1,
		logger:      logger.Named("task"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start 启动任务处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

// handle 只在存储层出错时返回 error；兑换本身的失败写入任务结果。
func (p *Processor) handle(ctx context.Context, taskID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	task, err := p.store.Claim(ctx, taskID)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskCompleted) ||
			stdErrors.Is(err, ErrTaskExhausted) || stdErrors.Is(err, ErrTaskConflict) {
			p.logger.Debug("跳过任务", slog.String("task_id", taskID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取任务失败", slog.Any("error", err), slog.String("task_id", taskID))
		p.emitAlert(ctx, &Task{ID: taskID}, CodeTaskProcessing, err, nil, "claim")
		return err
	}
	metrics.ObserveTask(string(StatusRunning))

	result, execErr := p.executor.Swap(ctx, agent.SwapRequest{
		TaskID: task.ID,
		Wallet: task.Wallet,
		Intent: task.Intent(),
	})
	if execErr != nil {
		code := xerrors.CodeOf(execErr)
		if code == xerrors.CodeUnknown {
			code = CodeTaskProcessing
		}
		return p.fail(ctx, task, code, execErr, nil)
	}
	if !result.Success {
		code := result.Code
		if code == "" {
			code = CodeTaskProcessing
		}
		return p.fail(ctx, task, code, stdErrors.New(result.Message), &result)
	}

	if err := p.store.MarkSucceeded(ctx, task.ID, result); err != nil {
		// 交易已提交，任务保持 running 以便人工核对，不能重投。
		p.logger.Error("标记任务成功状态失败",
			slog.Any("error", err),
			slog.String("task_id", task.ID),
			slog.String("tx_hash", result.TxHash))
		p.emitAlert(ctx, task, xerrors.CodeStorageFailure, err, &result, "mark_succeeded")
		return err
	}
	metrics.ObserveTask(string(StatusSucceeded))
	logger.Audit().Info("兑换任务执行成功",
		slog.String("task_id", task.ID),
		slog.String("direction", string(task.Direction)),
		slog.String("token", task.Token),
		slog.String("tx_hash", result.TxHash),
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, task *Task, code xerrors.Code, cause error, result *swap.Result) error {
	if err := p.store.MarkFailed(ctx, task.ID, code, cause.Error(), result); err != nil {
		p.logger.Error("标记任务失败状态出错", slog.Any("error", err), slog.String("task_id", task.ID))
		return err
	}
	metrics.ObserveTask(string(StatusFailed))
	logger.Audit().Warn("兑换任务执行失败",
		slog.String("task_id", task.ID),
		slog.String("direction", string(task.Direction)),
		slog.String("token", task.Token),
		slog.String("error", cause.Error()),
		slog.String("error_code", string(code)),
	)
	if xerrors.AttributesOf(code).Alert {
		p.emitAlert(ctx, task, code, cause, result, "terminal")
	}
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, task *Task, code xerrors.Code, cause error, result *swap.Result, stage string) {
	if p == nil || p.alerter == nil || task == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	event := alerting.Event{
		Code:       code,
		Message:    attrs.Message,
		Severity:   attrs.Severity,
		TaskID:     task.ID,
		Wallet:     task.Wallet,
		Token:      task.Token,
		Direction:  string(task.Direction),
		Stage:      stage,
		OccurredAt: time.Now(),
	}
	if cause != nil {
		event.Message = cause.Error()
	}
	if result != nil {
		event.TxHash = result.TxHash
		if result.ApprovalTxHash != "" {
			event.Metadata = map[string]string{"approval_tx_hash": result.ApprovalTxHash}
		}
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		p.logger.Error("告警通知失败",
			slog.Any("error", err),
			slog.String("task_id", task.ID),
			slog.String("stage", stage),
		)
	}
}
