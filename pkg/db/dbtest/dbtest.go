// Package dbtest 为测试提供迁移完成的 sqlite 内存数据库。
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"hustconnect/config"
	"hustconnect/pkg/db"

	"gorm.io/gorm"
)

var seq atomic.Int64

// New 打开独立的内存数据库并迁移全部模型
func New(tb testing.TB) *gorm.DB {
	tb.Helper()
	// 每个测试使用独立的命名内存库
	name := fmt.Sprintf("file:hustconnect_test_%d?mode=memory&cache=shared&_fk=1", seq.Add(1))
	gdb, err := db.InitDB(config.DatabaseConfig{Driver: "sqlite", Database: name})
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	tb.Cleanup(func() { _ = db.CloseDB(gdb) })
	return gdb
}
