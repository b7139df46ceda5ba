package schema

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Namer 实体类型可实现此接口自定义表名
type Namer interface {
	Table() string
}

// TableBuilder 从结构体构建表描述
type TableBuilder struct{}

// NewTableBuilder 创建新的表描述构建器
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{}
}

// FromStruct 从结构体构建 Table
// 支持的 tag 格式：
// - `bulk:"column_name,type=varchar,size=255"` 指定列名和类型
// - `bulk:"-"` 忽略字段
// - `table:"table_name"` 指定表名（写在任意字段上）
// 未打 tag 的导出字段按字段名小写作为列名，类型从 Go 类型推断
func (b *TableBuilder) FromStruct(v any) (*Table, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %T", v)
	}

	rt := rv.Type()

	table := &Table{
		Name:    b.tableName(v, rt),
		Columns: []Column{},
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("bulk")
		if tag == "-" {
			continue
		}

		column, err := b.parseFieldTag(field, tag)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to parse field %s", field.Name)
		}

		table.Columns = append(table.Columns, column)
	}

	return table, nil
}

// tableName 获取表名，优先级：Namer 接口 > table tag > 结构体名小写
func (b *TableBuilder) tableName(v any, rt reflect.Type) string {
	if namer, ok := v.(Namer); ok {
		if name := namer.Table(); name != "" {
			return name
		}
	}

	for i := 0; i < rt.NumField(); i++ {
		if tableTag := rt.Field(i).Tag.Get("table"); tableTag != "" {
			return tableTag
		}
	}

	return strings.ToLower(rt.Name())
}

// parseFieldTag 解析字段的 bulk tag
func (b *TableBuilder) parseFieldTag(field reflect.StructField, tag string) (Column, error) {
	column := Column{
		Field:    field.Name,
		Name:     strings.ToLower(field.Name),
		Type:     InferColumnType(field.Type),
		Nullable: true,
	}

	if tag == "" {
		return column, nil
	}

	parts := strings.Split(tag, ",")

	// 第一部分是列名（如果指定）
	if parts[0] != "" && !strings.Contains(parts[0], "=") {
		column.Name = parts[0]
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(part, "=") {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])

		switch key {
		case "type":
			columnType, err := ParseColumnType(value)
			if err != nil {
				return column, err
			}
			column.Type = columnType
		case "size":
			size, err := strconv.Atoi(value)
			if err != nil {
				return column, errors.Errorf("invalid size %q", value)
			}
			column.Size = size
		}
	}

	return column, nil
}

// InferColumnType 从 Go 类型推断列类型
// 固定映射：布尔 -> bit，整数和浮点数 -> int，64 位整数 -> bigint，其余 -> varchar
func InferColumnType(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Bool:
		return TypeBit
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Float32, reflect.Float64:
		return TypeInt
	case reflect.Int64, reflect.Uint64:
		return TypeBigInt
	default:
		return TypeVarChar
	}
}

// ParseColumnType 解析 tag 中的类型名
func ParseColumnType(value string) (ColumnType, error) {
	switch strings.ToLower(value) {
	case "bit", "bool":
		return TypeBit, nil
	case "int", "integer":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "varchar", "string", "text":
		return TypeVarChar, nil
	default:
		return "", errors.Errorf("unknown column type %q", value)
	}
}
