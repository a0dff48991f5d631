package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"OpenMCP-Swap/internal/agent"
	"OpenMCP-Swap/internal/dexscreener"
	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/observability/metrics"
	"OpenMCP-Swap/internal/storage/mysql"
	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/internal/task"
)

const maxRequestBody = 1 << 16

// TaskService 描述 API 依赖的任务服务能力。
type TaskService interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, opts ...task.ListOption) ([]*task.Task, error)
	Stats(ctx context.Context, opts ...task.ListOption) (task.TaskStats, error)
}

// Gateway 描述 API 依赖的查询与动作调度能力，通常由 agent.Agent 实现。
type Gateway interface {
	Execute(ctx context.Context, req agent.Request) (*agent.Response, error)
	Quote(ctx context.Context, intent swap.Intent) (swap.Preview, error)
	TokenInfo(ctx context.Context, address string) (dexscreener.TokenInfo, error)
	WalletInfo(ctx context.Context, address string, tokens ...string) (agent.WalletView, error)
	ListHistory(ctx context.Context, wallet string, limit int) ([]mysql.SwapRecord, error)
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr        string
	tasks       TaskService
	gateway     Gateway
	metricsPath string
	shutdown    time.Duration
}

// Option 自定义 Server。
type Option func(*Server)

// WithMetricsPath 设置 Prometheus 指标路径，传入空字符串关闭指标暴露。
func WithMetricsPath(path string) Option {
	return func(s *Server) {
		s.metricsPath = strings.TrimSpace(path)
	}
}

// WithShutdownTimeout 设置优雅关闭的最长等待时间。
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.shutdown = timeout
		}
	}
}

// NewServer 构造 API 服务实例，tasks 与 gateway 可以为 nil，对应接口返回 503。
func NewServer(addr string, tasks TaskService, gateway Gateway, opts ...Option) *Server {
	s := &Server{addr: addr, tasks: tasks, gateway: gateway, metricsPath: "/metrics", shutdown: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /api/v1/swaps", s.handleSubmitSwap)
	s.route(mux, "GET /api/v1/swaps", s.handleListSwaps)
	s.route(mux, "GET /api/v1/swaps/stats", s.handleSwapStats)
	s.route(mux, "GET /api/v1/swaps/{id}", s.handleSwapDetail)
	s.route(mux, "GET /api/v1/quote", s.handleQuote)
	s.route(mux, "GET /api/v1/tokens/{address}", s.handleTokenInfo)
	s.route(mux, "GET /api/v1/wallets/{address}", s.handleWalletInfo)
	s.route(mux, "GET /api/v1/history", s.handleHistory)
	s.route(mux, "POST /api/v1/actions", s.handleAction)
	if s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, metrics.Handler())
	}
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// route 注册处理器并以路由模式作为指标标签。
func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, instrument(pattern, handler))
}

type submitSwapRequest struct {
	ID        string         `json:"id"`
	Wallet    string         `json:"wallet"`
	Token     string         `json:"token"`
	AmountIn  string         `json:"amount_in"`
	Direction string         `json:"direction"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) handleSubmitSwap(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	var body submitSwapRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	created, err := s.tasks.Submit(r.Context(), task.SubmitRequest{
		ID:        body.ID,
		Wallet:    body.Wallet,
		Token:     body.Token,
		AmountIn:  body.AmountIn,
		Direction: body.Direction,
		Metadata:  body.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleListSwaps(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleSwapStats(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSwapDetail(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少任务 ID"))
		return
	}
	found, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type quoteResponse struct {
	swap.Preview
	Message string `json:"message,omitempty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "查询服务未初始化"))
		return
	}
	query := r.URL.Query()
	direction, err := swap.ParseDirection(query.Get("direction"))
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "direction 必须为 buy 或 sell"))
		return
	}
	preview, err := s.gateway.Quote(r.Context(), swap.Intent{
		Token:     query.Get("token"),
		AmountIn:  query.Get("amount_in"),
		Direction: direction,
	})
	if err != nil {
		writeErrorMessage(w, err, swap.Render(err))
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Preview: preview})
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "查询服务未初始化"))
		return
	}
	info, err := s.gateway.TokenInfo(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleWalletInfo(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "查询服务未初始化"))
		return
	}
	var tokens []string
	for _, raw := range r.URL.Query()["token"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tokens = append(tokens, part)
			}
		}
	}
	view, err := s.gateway.WalletInfo(r.Context(), r.PathValue("address"), tokens...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "查询服务未初始化"))
		return
	}
	limit := mysql.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	limit = mysql.ClampHistoryLimit(limit)
	records, err := s.gateway.ListHistory(r.Context(), strings.TrimSpace(r.URL.Query().Get("wallet")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []mysql.SwapRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleAction 把单个动作交给调度器同步执行，响应中的 text 可直接展示。
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "调度服务未初始化"))
		return
	}
	var req agent.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	resp, err := s.gateway.Execute(r.Context(), req)
	if err != nil {
		if resp != nil && resp.Text != "" {
			writeErrorMessage(w, err, resp.Text)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseListOptions 把查询参数转换为任务过滤条件。
func parseListOptions(r *http.Request) ([]task.ListOption, error) {
	query := r.URL.Query()
	var opts []task.ListOption

	intParam := func(name string) (int, bool, error) {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			return 0, false, nil
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, false, xerrors.New(xerrors.CodeInvalidArgument, name+" 必须为非负整数",
				xerrors.WithMetadata("field", name))
		}
		return value, true, nil
	}

	if limit, ok, err := intParam("limit"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, task.WithLimit(limit))
	}
	if offset, ok, err := intParam("offset"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, task.WithOffset(offset))
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.ToLower(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !task.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的任务状态",
					xerrors.WithMetadata("status", string(status)))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := strings.TrimSpace(query.Get("direction")); raw != "" {
		direction, err := swap.ParseDirection(raw)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "direction 必须为 buy 或 sell")
		}
		opts = append(opts, task.WithDirection(direction))
	}
	if wallet := strings.TrimSpace(query.Get("wallet")); wallet != "" {
		opts = append(opts, task.WithWallet(wallet))
	}
	if token := strings.TrimSpace(query.Get("token")); token != "" {
		opts = append(opts, task.WithToken(token))
	}
	if raw := strings.TrimSpace(query.Get("has_result")); raw != "" {
		hasResult, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "has_result 必须为布尔值")
		}
		opts = append(opts, task.WithResultPresence(hasResult))
	}
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "since 必须为 Unix 秒")
		}
		opts = append(opts, task.WithUpdatedSince(time.Unix(ts, 0)))
	}
	if raw := strings.TrimSpace(query.Get("until")); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "until 必须为 Unix 秒")
		}
		opts = append(opts, task.WithUpdatedUntil(time.Unix(ts, 0)))
	}
	if raw := strings.TrimSpace(query.Get("order")); strings.EqualFold(raw, "asc") {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		opts = append(opts, task.WithQuery(q))
	}
	return opts, nil
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
