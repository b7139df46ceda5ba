package pool

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hatlonely/bulkdb/log"
)

var (
	ErrConfiguration      = errors.New("missing or invalid configuration")
	ErrPoolNotInitialized = errors.New("connection pool not initialized")
)

// Options 连接池配置
type Options struct {
	Driver   string `cfg:"driver" json:"driver" yaml:"driver" toml:"driver" ini:"driver" def:"mysql" validate:"omitempty,oneof=mysql sqlite3"`
	DSN      string `cfg:"dsn" json:"dsn" yaml:"dsn" toml:"dsn" ini:"dsn"`
	Host     string `cfg:"host" json:"host" yaml:"host" toml:"host" ini:"host" def:"localhost"`
	Port     string `cfg:"port" json:"port" yaml:"port" toml:"port" ini:"port" def:"3306"`
	Database string `cfg:"database" json:"database" yaml:"database" toml:"database" ini:"database"`
	Username string `cfg:"username" json:"username" yaml:"username" toml:"username" ini:"username"`
	Password string `cfg:"password" json:"password" yaml:"password" toml:"password" ini:"password"`
	Charset  string `cfg:"charset" json:"charset" yaml:"charset" toml:"charset" ini:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" json:"maxConns" yaml:"maxConns" toml:"maxConns" ini:"maxConns" def:"10" validate:"omitempty,min=1"`
	MaxIdle  int    `cfg:"maxIdle" json:"maxIdle" yaml:"maxIdle" toml:"maxIdle" ini:"maxIdle" def:"5" validate:"omitempty,min=0"`
}

// Manager 进程级连接池管理器
// Initialize 和 Shutdown 由顶层装配代码各调用一次，表句柄只借用连接池，不负责关闭
type Manager struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
	logger log.Logger
}

type ManagerOptions struct {
	Logger log.Logger
}

func NewManagerWithOptions(options *ManagerOptions) *Manager {
	if options == nil {
		options = &ManagerOptions{}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{logger: logger}
}

func NewManager() *Manager {
	return NewManagerWithOptions(nil)
}

// Initialize 打开连接池，幂等：已有连接池时直接返回
// 失败时记录日志并返回错误，管理器保持未初始化，下次调用可重试
func (m *Manager) Initialize(ctx context.Context, options *Options) error {
	if options == nil {
		err := errors.WithMessage(ErrConfiguration, "options cannot be nil")
		m.logger.Error("initialize connection pool failed", "error", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}

	if err := SetDefaults(options); err != nil {
		err = errors.WithMessage(err, "failed to set option defaults")
		m.logger.Error("initialize connection pool failed", "error", err)
		return err
	}
	if err := validator.New().Struct(options); err != nil {
		err = errors.WithMessagef(ErrConfiguration, "%v", err)
		m.logger.Error("initialize connection pool failed", "error", err)
		return err
	}

	dsn, err := buildDSN(options)
	if err != nil {
		m.logger.Error("initialize connection pool failed", "error", err)
		return err
	}

	db, err := sql.Open(options.Driver, dsn)
	if err != nil {
		m.logger.Error("initialize connection pool failed", "driver", options.Driver, "error", err)
		return errors.WithMessage(err, "failed to open connection pool")
	}

	db.SetMaxOpenConns(options.MaxConns)
	db.SetMaxIdleConns(options.MaxIdle)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		m.logger.Error("initialize connection pool failed", "driver", options.Driver, "error", err)
		return errors.WithMessage(err, "failed to ping database")
	}

	m.db = db
	m.driver = options.Driver
	m.logger.Info("connection pool initialized", "driver", options.Driver)
	return nil
}

// DB 返回连接池，未初始化时返回 ErrPoolNotInitialized
func (m *Manager) DB() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil, ErrPoolNotInitialized
	}
	return m.db, nil
}

// Driver 返回当前连接池的驱动名，未初始化时为空串
func (m *Manager) Driver() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver
}

// Shutdown 关闭连接池，幂等：从未初始化或已关闭时直接返回 nil
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	err := m.db.Close()
	m.db = nil
	m.driver = ""
	if err != nil {
		m.logger.Error("shutdown connection pool failed", "error", err)
		return errors.WithMessage(err, "failed to close connection pool")
	}

	m.logger.Info("connection pool closed")
	return nil
}

func buildDSN(options *Options) (string, error) {
	if options.DSN != "" {
		return options.DSN, nil
	}

	switch options.Driver {
	case "mysql":
		if options.Database == "" {
			return "", errors.WithMessage(ErrConfiguration, "database is required for mysql")
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			options.Username, options.Password, options.Host, options.Port,
			options.Database, options.Charset), nil
	case "sqlite3":
		if options.Database == "" {
			return "", errors.WithMessage(ErrConfiguration, "database is required for sqlite3")
		}
		return options.Database, nil
	default:
		return "", errors.WithMessagef(ErrConfiguration, "unsupported driver: %s", options.Driver)
	}
}

var defaultManager = NewManager()

// Default 进程级默认管理器
func Default() *Manager {
	return defaultManager
}

func Initialize(ctx context.Context, options *Options) error {
	return defaultManager.Initialize(ctx, options)
}

func DB() (*sql.DB, error) {
	return defaultManager.DB()
}

func Shutdown() error {
	return defaultManager.Shutdown()
}
