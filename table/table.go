package table

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/bulkdb/log"
	"github.com/hatlonely/bulkdb/pool"
	"github.com/hatlonely/bulkdb/schema"
)

// HandleOptions 表句柄构建选项，零值可用
type HandleOptions struct {
	// Name 覆盖表名，空串时使用描述中的表名
	Name string `cfg:"name"`

	// Schema 直接指定表描述，跳过注册表和 tag 推断
	Schema *schema.Table

	// Manager 连接池管理器，nil 时使用 pool.Default()
	Manager *pool.Manager

	// Registry 元数据注册表，nil 时使用 schema.DefaultRegistry()
	Registry *schema.Registry

	// Logger 日志记录器，nil 时使用 log.Default()
	Logger log.Logger
}

// Handle 实体类型 T 的表句柄
// 持有不可变的表描述和连接池的借用引用，行缓冲归句柄独占
// 同一句柄上的 Insert/Exec 调用需要调用方自行串行化
type Handle[T any] struct {
	schema  *schema.Table
	manager *pool.Manager
	logger  log.Logger

	// 每列对应的结构体字段索引，nil 表示无对应字段
	fields [][]int

	buffer [][]any
}

func NewHandle[T any]() (*Handle[T], error) {
	return NewHandleWithOptions[T](nil)
}

func NewHandleWithOptions[T any](options *HandleOptions) (*Handle[T], error) {
	if options == nil {
		options = &HandleOptions{}
	}

	manager := options.Manager
	if manager == nil {
		manager = pool.Default()
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}

	table := options.Schema
	if table == nil {
		registry := options.Registry
		if registry == nil {
			registry = schema.DefaultRegistry()
		}
		table = registry.Build(new(T))
	}
	if options.Name != "" {
		table = &schema.Table{Name: options.Name, Columns: table.Columns}
	}
	if table.Name == "" {
		return nil, errors.New("table name cannot be empty")
	}

	h := &Handle[T]{
		schema:  table,
		manager: manager,
		logger:  logger,
		fields:  make([][]int, len(table.Columns)),
	}

	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() == reflect.Struct {
		for i := range table.Columns {
			if f, ok := rt.FieldByName(table.Columns[i].Field); ok {
				h.fields[i] = f.Index
			}
		}
	}

	return h, nil
}

// Schema 返回句柄绑定的表描述
func (h *Handle[T]) Schema() *schema.Table {
	return h.schema
}

// Buffered 返回当前缓冲的行数
func (h *Handle[T]) Buffered() int {
	return len(h.buffer)
}

// Create 按表描述建表，已存在时不报错
func (h *Handle[T]) Create(ctx context.Context) error {
	if len(h.schema.Columns) == 0 {
		return errors.Errorf("table %s has no columns", h.schema.Name)
	}

	db, err := h.manager.DB()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, h.schema.CreateSQL()); err != nil {
		return errors.WithMessagef(err, "failed to create table %s", h.schema.Name)
	}
	h.logger.Debug("table created", "table", h.schema.Name)
	return nil
}

// Drop 删除句柄对应的表
// 表名来自描述且与 Create 一样只做引用转义，Create 得出来的表 Drop 一定能删掉
func (h *Handle[T]) Drop(ctx context.Context) error {
	db, err := h.manager.DB()
	if err != nil {
		return err
	}

	stmt := "DROP TABLE IF EXISTS " + schema.QuoteIdentifier(h.schema.Name)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return errors.WithMessagef(err, "failed to drop table %s", h.schema.Name)
	}
	h.logger.Debug("table dropped", "table", h.schema.Name)
	return nil
}

// UseDB 切换当前数据库
// USE 语句无法参数化，目标库名必须先通过白名单校验，校验失败时不发送任何语句
func (h *Handle[T]) UseDB(ctx context.Context, name string) error {
	if err := schema.ValidateIdentifier(name); err != nil {
		return err
	}

	db, err := h.manager.DB()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "USE "+schema.QuoteIdentifier(name)); err != nil {
		return errors.WithMessagef(err, "failed to use database %s", name)
	}
	h.logger.Debug("database switched", "database", name)
	return nil
}
