package schema

import (
	"fmt"
	"strings"
)

// ColumnType 列类型类别
type ColumnType string

const (
	TypeBit     ColumnType = "bit"
	TypeInt     ColumnType = "int"
	TypeBigInt  ColumnType = "bigint"
	TypeVarChar ColumnType = "varchar"
)

// DefaultVarCharSize 未指定长度时 varchar 列的默认长度
const DefaultVarCharSize = 128

// Column 列描述
type Column struct {
	Field    string     // 来源结构体字段名
	Name     string     // 列名，默认为字段名的小写形式
	Type     ColumnType // 列类型类别
	Size     int        // varchar 长度
	Nullable bool
}

// SQLType 渲染列的 SQL 类型
func (c *Column) SQLType() string {
	switch c.Type {
	case TypeBit:
		return "BIT"
	case TypeInt:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	default:
		size := c.Size
		if size <= 0 {
			size = DefaultVarCharSize
		}
		return fmt.Sprintf("VARCHAR(%d)", size)
	}
}

// Table 表描述，构建完成后不再修改
type Table struct {
	Name    string
	Columns []Column
}

// CreateSQL 生成建表语句，所有列均可为空
func (t *Table) CreateSQL() string {
	var defs []string
	for i := range t.Columns {
		c := &t.Columns[i]
		defs = append(defs, fmt.Sprintf("%s %s NULL", QuoteIdentifier(c.Name), c.SQLType()))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		QuoteIdentifier(t.Name), strings.Join(defs, ", "))
}
