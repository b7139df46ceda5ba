package table

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/bulkdb/pool"
	"github.com/hatlonely/bulkdb/schema"
)

// Product 集成测试用实体
type Product struct {
	ID    int64  `bulk:"id,type=bigint"`
	Name  string `bulk:"name"`
	Stock int    `bulk:"stock"`
}

// Blank 零列实体
type Blank struct{}

func newTestManager(t *testing.T) *pool.Manager {
	t.Helper()
	manager := pool.NewManager()
	err := manager.Initialize(context.Background(), &pool.Options{
		Driver:   "sqlite3",
		Database: ":memory:",
		MaxConns: 1,
		MaxIdle:  1,
	})
	if err != nil {
		t.Fatalf("failed to initialize pool: %v", err)
	}
	t.Cleanup(func() { manager.Shutdown() })
	return manager
}

func TestHandle_InsertExec(t *testing.T) {
	convey.Convey("批量写入", t, func() {
		manager := newTestManager(t)
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{Manager: manager})
		convey.So(err, convey.ShouldBeNil)
		convey.So(handle.Schema().Name, convey.ShouldEqual, "product")

		convey.Convey("多次 Insert 累积缓冲，Exec 一次写入全部", func() {
			bulk := handle.Insert(
				&Product{ID: 1, Name: "keyboard", Stock: 10},
				&Product{ID: 2, Name: "mouse", Stock: 20},
			)
			convey.So(bulk, convey.ShouldNotBeNil)
			convey.So(handle.Buffered(), convey.ShouldEqual, 2)

			bulk = handle.Insert(&Product{ID: 3, Name: "monitor", Stock: 5})
			convey.So(handle.Buffered(), convey.ShouldEqual, 3)

			result, err := bulk.Exec(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(result.RowsAffected, convey.ShouldEqual, 3)
			convey.So(handle.Buffered(), convey.ShouldEqual, 0)

			db, err := manager.DB()
			convey.So(err, convey.ShouldBeNil)

			var count int
			convey.So(db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `product`").Scan(&count), convey.ShouldBeNil)
			convey.So(count, convey.ShouldEqual, 3)

			var name string
			convey.So(db.QueryRowContext(ctx, "SELECT `name` FROM `product` WHERE `id` = 2").Scan(&name), convey.ShouldBeNil)
			convey.So(name, convey.ShouldEqual, "mouse")

			convey.Convey("缓冲已取走的 Exec 写入 0 行", func() {
				result, err := bulk.Exec(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(result.RowsAffected, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("空输入和 nil 行是无操作", func() {
			convey.So(handle.Insert(), convey.ShouldBeNil)
			convey.So(handle.Insert(nil, nil), convey.ShouldBeNil)
			convey.So(handle.Buffered(), convey.ShouldEqual, 0)
		})

		convey.Convey("两个句柄的缓冲彼此独立", func() {
			other, err := NewHandleWithOptions[Product](&HandleOptions{Manager: manager})
			convey.So(err, convey.ShouldBeNil)

			handle.Insert(&Product{ID: 1})
			convey.So(handle.Buffered(), convey.ShouldEqual, 1)
			convey.So(other.Buffered(), convey.ShouldEqual, 0)
		})
	})
}

func TestHandle_ZeroColumns(t *testing.T) {
	convey.Convey("零列实体", t, func() {
		handle, err := NewHandleWithOptions[Blank](&HandleOptions{Manager: pool.NewManager()})
		convey.So(err, convey.ShouldBeNil)

		convey.So(handle.Insert(&Blank{}), convey.ShouldBeNil)
		convey.So(handle.Insert(&Blank{}, &Blank{}), convey.ShouldBeNil)
		convey.So(handle.Buffered(), convey.ShouldEqual, 0)

		convey.So(handle.Create(context.Background()), convey.ShouldNotBeNil)
	})
}

func TestHandle_PoolNotInitialized(t *testing.T) {
	convey.Convey("未初始化连接池时所有资源操作失败", t, func() {
		manager := pool.NewManager()
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{Manager: manager})
		convey.So(err, convey.ShouldBeNil)

		_, err = handle.Insert(&Product{ID: 1}).Exec(ctx)
		convey.So(errors.Is(err, pool.ErrPoolNotInitialized), convey.ShouldBeTrue)

		convey.So(errors.Is(handle.Create(ctx), pool.ErrPoolNotInitialized), convey.ShouldBeTrue)
		convey.So(errors.Is(handle.Drop(ctx), pool.ErrPoolNotInitialized), convey.ShouldBeTrue)
		convey.So(errors.Is(handle.UseDB(ctx, "sales_db"), pool.ErrPoolNotInitialized), convey.ShouldBeTrue)
	})
}

func TestHandle_UseDB(t *testing.T) {
	convey.Convey("数据库切换的标识符校验", t, func() {
		ctx := context.Background()

		convey.Convey("非法库名在任何语句发出前失败", func() {
			// 连接池未初始化也一样，校验先于资源获取
			handle, err := NewHandleWithOptions[Product](&HandleOptions{Manager: pool.NewManager()})
			convey.So(err, convey.ShouldBeNil)

			err = handle.UseDB(ctx, "sales; DROP TABLE x")
			convey.So(errors.Is(err, schema.ErrInvalidIdentifier), convey.ShouldBeTrue)
		})

		convey.Convey("合法库名发出一条 USE 语句", func() {
			manager := newTestManager(t)
			handle, err := NewHandleWithOptions[Product](&HandleOptions{Manager: manager})
			convey.So(err, convey.ShouldBeNil)

			// sqlite 不支持 USE，语句到达后端并原样报错即说明校验已通过
			err = handle.UseDB(ctx, "sales_db")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, schema.ErrInvalidIdentifier), convey.ShouldBeFalse)
			convey.So(errors.Is(err, pool.ErrPoolNotInitialized), convey.ShouldBeFalse)
		})
	})
}

func TestHandle_CreateDrop(t *testing.T) {
	convey.Convey("建表和删表", t, func() {
		manager := newTestManager(t)
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{Manager: manager})
		convey.So(err, convey.ShouldBeNil)

		convey.So(handle.Create(ctx), convey.ShouldBeNil)
		// 幂等
		convey.So(handle.Create(ctx), convey.ShouldBeNil)

		db, err := manager.DB()
		convey.So(err, convey.ShouldBeNil)

		var count int
		convey.So(db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `product`").Scan(&count), convey.ShouldBeNil)
		convey.So(count, convey.ShouldEqual, 0)

		convey.So(handle.Drop(ctx), convey.ShouldBeNil)
		convey.So(db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `product`").Scan(&count), convey.ShouldNotBeNil)

		// 删除不存在的表也成功
		convey.So(handle.Drop(ctx), convey.ShouldBeNil)
	})
}

func TestHandle_DashedTableName(t *testing.T) {
	convey.Convey("白名单外的表名建删一致", t, func() {
		manager := newTestManager(t)
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{
			Manager: manager,
			Name:    "my-table",
		})
		convey.So(err, convey.ShouldBeNil)

		convey.So(handle.Create(ctx), convey.ShouldBeNil)

		result, err := handle.Insert(&Product{ID: 1, Name: "disk", Stock: 3}).Exec(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(result.RowsAffected, convey.ShouldEqual, 1)

		// Create 能建出来的表，Drop 也要能删掉
		convey.So(handle.Drop(ctx), convey.ShouldBeNil)

		db, err := manager.DB()
		convey.So(err, convey.ShouldBeNil)
		var count int
		convey.So(db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `my-table`").Scan(&count), convey.ShouldNotBeNil)
	})
}

func TestHandle_NameOverride(t *testing.T) {
	convey.Convey("表名覆盖", t, func() {
		manager := newTestManager(t)
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{
			Manager: manager,
			Name:    "product_staging",
		})
		convey.So(err, convey.ShouldBeNil)
		convey.So(handle.Schema().Name, convey.ShouldEqual, "product_staging")

		result, err := handle.Insert(&Product{ID: 1, Name: "cable", Stock: 7}).Exec(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(result.RowsAffected, convey.ShouldEqual, 1)

		db, err := manager.DB()
		convey.So(err, convey.ShouldBeNil)
		var name string
		convey.So(db.QueryRowContext(ctx, "SELECT `name` FROM `product_staging`").Scan(&name), convey.ShouldBeNil)
		convey.So(name, convey.ShouldEqual, "cable")
	})
}

func TestHandle_ExplicitSchema(t *testing.T) {
	convey.Convey("直接指定表描述", t, func() {
		manager := newTestManager(t)
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{
			Manager: manager,
			Schema: &schema.Table{
				Name: "inventory",
				Columns: []schema.Column{
					{Field: "ID", Name: "id", Type: schema.TypeBigInt, Nullable: true},
					{Field: "Stock", Name: "stock", Type: schema.TypeInt, Nullable: true},
				},
			},
		})
		convey.So(err, convey.ShouldBeNil)

		result, err := handle.Insert(&Product{ID: 9, Name: "ignored", Stock: 42}).Exec(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(result.RowsAffected, convey.ShouldEqual, 1)

		db, err := manager.DB()
		convey.So(err, convey.ShouldBeNil)
		var stock int
		convey.So(db.QueryRowContext(ctx, "SELECT `stock` FROM `inventory` WHERE `id` = 9").Scan(&stock), convey.ShouldBeNil)
		convey.So(stock, convey.ShouldEqual, 42)
	})
}

func TestHandle_BufferOrder(t *testing.T) {
	convey.Convey("缓冲保持调用顺序", t, func() {
		manager := newTestManager(t)
		ctx := context.Background()

		handle, err := NewHandleWithOptions[Product](&HandleOptions{Manager: manager})
		convey.So(err, convey.ShouldBeNil)

		var bulk *Bulk[Product]
		for i := 1; i <= 5; i++ {
			bulk = handle.Insert(&Product{ID: int64(i), Name: fmt.Sprintf("item-%d", i)})
		}
		convey.So(handle.Buffered(), convey.ShouldEqual, 5)

		result, err := bulk.Exec(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(result.RowsAffected, convey.ShouldEqual, 5)

		db, err := manager.DB()
		convey.So(err, convey.ShouldBeNil)
		rows, err := db.QueryContext(ctx, "SELECT `id` FROM `product` ORDER BY ROWID")
		convey.So(err, convey.ShouldBeNil)
		defer rows.Close()

		var ids []int64
		for rows.Next() {
			var id int64
			convey.So(rows.Scan(&id), convey.ShouldBeNil)
			ids = append(ids, id)
		}
		convey.So(ids, convey.ShouldResemble, []int64{1, 2, 3, 4, 5})
	})
}
