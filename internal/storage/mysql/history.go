package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// memoryHistoryLimit 为内存仓库保留的最大记录数。
	memoryHistoryLimit = 512
	// DefaultHistoryLimit 为未指定数量时返回的记录数。
	DefaultHistoryLimit = 20
	// MaxHistoryLimit 为单次查询可返回的最大记录数。
	MaxHistoryLimit = 100
)

// ClampHistoryLimit 把调用方给出的数量约束到 [1, MaxHistoryLimit]。
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// SwapRecord 表示一次兑换尝试的落库结构。
type SwapRecord struct {
	ID             int64    `json:"id"`
	RequestID      string   `json:"request_id"`
	TaskID         string   `json:"task_id,omitempty"`
	Wallet         string   `json:"wallet"`
	Token          string   `json:"token"`
	Direction      string   `json:"direction"`
	AmountIn       string   `json:"amount_in,omitempty"`
	QuotedOut      string   `json:"quoted_out,omitempty"`
	MinAmountOut   string   `json:"min_amount_out,omitempty"`
	Success        bool     `json:"success"`
	State          string   `json:"state"`
	TxHash         string   `json:"tx_hash,omitempty"`
	ApprovalTxHash string   `json:"approval_tx_hash,omitempty"`
	ErrorCode      string   `json:"error_code,omitempty"`
	Message        string   `json:"message"`
	Warnings       []string `json:"warnings,omitempty"`
	CreatedAt      int64    `json:"created_at"`
}

// SwapRepository 抽象兑换历史的持久化接口。
type SwapRepository interface {
	Save(ctx context.Context, record *SwapRecord) error
	ListLatest(ctx context.Context, wallet string, limit int) ([]SwapRecord, error)
}

// MemorySwapRepository 使用本地 JSON 日志模拟 MySQL 的效果，方便迭代开发。
type MemorySwapRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []SwapRecord
	nextID   int64
}

// NewMemorySwapRepository 创建一个基于文件的兑换历史仓库。
func NewMemorySwapRepository(dataDir string) (*MemorySwapRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &MemorySwapRepository{dataFile: filepath.Join(dataDir, "swaps.log")}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录兑换结果。
func (m *MemorySwapRepository) Save(_ context.Context, record *SwapRecord) error {
	if record == nil {
		return fmt.Errorf("兑换记录不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	record.ID = m.nextID

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开兑换日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化兑换记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入兑换日志失败: %w", err)
	}

	m.records = append([]SwapRecord{*record}, m.records...)
	if len(m.records) > memoryHistoryLimit {
		m.records = m.records[:memoryHistoryLimit]
	}
	return nil
}

// ListLatest 返回最近的兑换记录，按时间倒序排列。wallet 为空时返回全部钱包。
func (m *MemorySwapRepository) ListLatest(_ context.Context, wallet string, limit int) ([]SwapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = ClampHistoryLimit(limit)
	var results []SwapRecord
	for _, record := range m.records {
		if wallet != "" && !strings.EqualFold(record.Wallet, wallet) {
			continue
		}
		results = append(results, record)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// Close 满足与 SQL 仓库一致的关闭语义。
func (m *MemorySwapRepository) Close() error { return nil }

func (m *MemorySwapRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取兑换日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var restored []SwapRecord
	for scanner.Scan() {
		var record SwapRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.ID > m.nextID {
			m.nextID = record.ID
		}
		restored = append([]SwapRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析兑换日志失败: %w", err)
	}

	if len(restored) > memoryHistoryLimit {
		restored = restored[:memoryHistoryLimit]
	}
	m.records = restored
	return nil
}

// SQLSwapRepository 使用 MySQL 存储兑换历史。
type SQLSwapRepository struct {
	db *sql.DB
}

// NewSQLSwapRepository 创建连接池并执行迁移。
func NewSQLSwapRepository(ctx context.Context, cfg Config) (*SQLSwapRepository, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLSwapRepository{db: db}, nil
}

const insertSwapSQL = `INSERT INTO swap_history
    (request_id, task_id, wallet, token, direction, amount_in, quoted_out, min_amount_out, success, state, tx_hash, approval_tx_hash, error_code, message, warnings, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectSwapColumns = `SELECT id, request_id, task_id, wallet, token, direction, amount_in, quoted_out, min_amount_out, success, state, tx_hash, approval_tx_hash, error_code, message, warnings, created_at
    FROM swap_history`

// Save 将兑换记录写入 MySQL。
func (s *SQLSwapRepository) Save(ctx context.Context, record *SwapRecord) error {
	if record == nil {
		return fmt.Errorf("兑换记录不能为空")
	}
	warnings, err := json.Marshal(record.Warnings)
	if err != nil {
		return fmt.Errorf("序列化告警信息失败: %w", err)
	}
	result, err := s.db.ExecContext(ctx, insertSwapSQL,
		record.RequestID,
		record.TaskID,
		strings.ToLower(record.Wallet),
		strings.ToLower(record.Token),
		record.Direction,
		record.AmountIn,
		record.QuotedOut,
		record.MinAmountOut,
		record.Success,
		record.State,
		record.TxHash,
		record.ApprovalTxHash,
		record.ErrorCode,
		record.Message,
		string(warnings),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入兑换记录失败: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// ListLatest 查询最近的若干条兑换记录。
func (s *SQLSwapRepository) ListLatest(ctx context.Context, wallet string, limit int) ([]SwapRecord, error) {
	limit = ClampHistoryLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if wallet == "" {
		rows, err = s.db.QueryContext(ctx, selectSwapColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectSwapColumns+` WHERE wallet = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
			strings.ToLower(wallet), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("查询兑换记录失败: %w", err)
	}
	defer rows.Close()

	var records []SwapRecord
	for rows.Next() {
		var (
			record   SwapRecord
			warnings sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.RequestID, &record.TaskID, &record.Wallet, &record.Token, &record.Direction,
			&record.AmountIn, &record.QuotedOut, &record.MinAmountOut, &record.Success, &record.State, &record.TxHash,
			&record.ApprovalTxHash, &record.ErrorCode, &record.Message, &warnings, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析兑换记录失败: %w", err)
		}
		if warnings.Valid && warnings.String != "" && warnings.String != "null" {
			if err := json.Unmarshal([]byte(warnings.String), &record.Warnings); err != nil {
				return nil, fmt.Errorf("解析告警信息失败: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历兑换记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLSwapRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
