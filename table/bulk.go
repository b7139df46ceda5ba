package table

import (
	"context"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/bulkdb/schema"
)

// Result 批量写入统计，数值从驱动原样透传
type Result struct {
	RowsAffected int64
}

// Bulk 延迟执行的批量写入
// Insert 只做本地缓冲，所有网络交互推迟到 Exec
type Bulk[T any] struct {
	handle *Handle[T]
}

// Insert 按列顺序提取每行的字段值并追加到句柄的行缓冲，多次调用累积
// 空输入或零列描述为无操作，返回 nil
func (h *Handle[T]) Insert(rows ...*T) *Bulk[T] {
	if len(h.schema.Columns) == 0 || len(rows) == 0 {
		return nil
	}

	appended := false
	for _, row := range rows {
		if row == nil {
			continue
		}
		h.buffer = append(h.buffer, h.extract(row))
		appended = true
	}
	if !appended {
		return nil
	}

	return &Bulk[T]{handle: h}
}

// Exec 清空句柄已累积的全部行缓冲，以一条多值 INSERT 写入
// 表不存在时先按描述创建；缓冲已被其他 Exec 取走时写入 0 行且不发语句
func (b *Bulk[T]) Exec(ctx context.Context) (*Result, error) {
	h := b.handle

	db, err := h.manager.DB()
	if err != nil {
		return nil, err
	}

	rows := h.buffer
	h.buffer = nil
	if len(rows) == 0 {
		return &Result{}, nil
	}

	if _, err := db.ExecContext(ctx, h.schema.CreateSQL()); err != nil {
		return nil, errors.WithMessagef(err, "failed to create table %s", h.schema.Name)
	}

	stmt, args := buildBulkInsert(h.schema, rows)
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.WithMessagef(err, "bulk insert into %s failed", h.schema.Name)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	h.logger.Debug("bulk insert flushed", "table", h.schema.Name, "rows", affected)
	return &Result{RowsAffected: affected}, nil
}

func (h *Handle[T]) extract(row *T) []any {
	rv := reflect.ValueOf(row).Elem()
	values := make([]any, len(h.schema.Columns))
	for i := range h.schema.Columns {
		if h.fields[i] == nil {
			continue
		}
		values[i] = rv.FieldByIndex(h.fields[i]).Interface()
	}
	return values
}

func buildBulkInsert(table *schema.Table, rows [][]any) (string, []any) {
	columns := make([]string, len(table.Columns))
	for i := range table.Columns {
		columns[i] = schema.QuoteIdentifier(table.Columns[i].Name)
	}

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	placeholders := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		placeholders[i] = rowPlaceholder
		args = append(args, row...)
	}

	stmt := "INSERT INTO " + schema.QuoteIdentifier(table.Name) +
		" (" + strings.Join(columns, ", ") + ") VALUES " + strings.Join(placeholders, ", ")
	return stmt, args
}
