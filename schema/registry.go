package schema

import (
	"reflect"
	"strings"
	"sync"

	"github.com/hatlonely/bulkdb/log"
)

// ColumnOptions 显式注册列时的选项
type ColumnOptions struct {
	Name string
	Type ColumnType
	Size int
}

type ColumnOption func(*ColumnOptions)

func WithColumnName(name string) ColumnOption {
	return func(options *ColumnOptions) {
		options.Name = name
	}
}

func WithColumnType(columnType ColumnType) ColumnOption {
	return func(options *ColumnOptions) {
		options.Type = columnType
	}
}

func WithColumnSize(size int) ColumnOption {
	return func(options *ColumnOptions) {
		options.Size = size
	}
}

type tableMeta struct {
	name    string
	columns []Column
}

// Registry 实体元数据注册表，按实体类型记录表名和列描述
// 元数据在进程生命周期内常驻，没有删除操作
type Registry struct {
	mu      sync.Mutex
	logger  log.Logger
	builder *TableBuilder
	tables  map[reflect.Type]*tableMeta
}

type RegistryOptions struct {
	Logger log.Logger
}

func NewRegistryWithOptions(options *RegistryOptions) *Registry {
	if options == nil {
		options = &RegistryOptions{}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Registry{
		logger:  logger,
		builder: NewTableBuilder(),
		tables:  map[reflect.Type]*tableMeta{},
	}
}

func NewRegistry() *Registry {
	return NewRegistryWithOptions(nil)
}

// RegisterTable 注册实体类型对应的表名，name 为空时使用类型名的小写形式
func (r *Registry) RegisterTable(prototype any, name string) {
	rt := indirectType(prototype)
	if rt == nil {
		return
	}
	if name == "" {
		name = strings.ToLower(rt.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	meta := r.tables[rt]
	if meta == nil {
		meta = &tableMeta{}
		r.tables[rt] = meta
	}
	meta.name = name
}

// RegisterColumn 为实体类型追加一个列描述，列顺序为注册顺序
// 同一字段重复注册时就地覆盖，保留首次注册的位置
func (r *Registry) RegisterColumn(prototype any, field string, opts ...ColumnOption) {
	options := &ColumnOptions{}
	for _, opt := range opts {
		opt(options)
	}

	rt := indirectType(prototype)
	if rt == nil {
		return
	}

	column := Column{
		Field:    field,
		Name:     options.Name,
		Type:     options.Type,
		Size:     options.Size,
		Nullable: true,
	}
	if column.Name == "" {
		column.Name = strings.ToLower(field)
	}
	if column.Type == "" {
		column.Type = inferFieldColumnType(rt, field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	meta := r.tables[rt]
	if meta == nil {
		meta = &tableMeta{name: strings.ToLower(rt.Name())}
		r.tables[rt] = meta
	}

	for i := range meta.columns {
		if meta.columns[i].Field == field {
			r.logger.Warn("duplicate column registration, replacing",
				"type", rt.String(), "field", field)
			meta.columns[i] = column
			return
		}
	}

	meta.columns = append(meta.columns, column)
}

// Build 生成实体类型的表描述
// 显式注册的列优先；没有显式列时从结构体 tag 推断；无法推断时返回空列表
func (r *Registry) Build(prototype any) *Table {
	rt := indirectType(prototype)
	if rt == nil {
		return &Table{Columns: []Column{}}
	}

	r.mu.Lock()
	meta := r.tables[rt]
	var registered *Table
	if meta != nil && len(meta.columns) > 0 {
		registered = &Table{
			Name:    meta.name,
			Columns: append([]Column(nil), meta.columns...),
		}
	}
	r.mu.Unlock()

	if registered != nil {
		return registered
	}

	table, err := r.builder.FromStruct(prototype)
	if err != nil {
		return &Table{Name: strings.ToLower(rt.Name()), Columns: []Column{}}
	}
	if meta != nil && meta.name != "" {
		table.Name = meta.name
	}
	return table
}

// inferFieldColumnType 按字段的 Go 类型推断列类型，字段不存在时回退为 varchar
func inferFieldColumnType(rt reflect.Type, field string) ColumnType {
	if rt.Kind() == reflect.Struct {
		if f, ok := rt.FieldByName(field); ok {
			return InferColumnType(f.Type)
		}
	}
	return TypeVarChar
}

func indirectType(prototype any) reflect.Type {
	rt := reflect.TypeOf(prototype)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt
}

var defaultRegistry = NewRegistry()

// DefaultRegistry 进程级默认注册表
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func RegisterTable(prototype any, name string) {
	defaultRegistry.RegisterTable(prototype, name)
}

func RegisterColumn(prototype any, field string, opts ...ColumnOption) {
	defaultRegistry.RegisterColumn(prototype, field, opts...)
}

func Build(prototype any) *Table {
	return defaultRegistry.Build(prototype)
}
