package dbtest

import (
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OnNextQuery runs fn once, right after the next successful SELECT against
// table. Tests use it to interleave a concurrent write between a read and the
// write that depends on it.
func OnNextQuery(t testing.TB, db *gorm.DB, table string, fn func()) {
	t.Helper()
	var fired atomic.Bool
	name := "dbtest:on_next_query:" + uuid.NewString()
	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != table {
			return
		}
		if fired.CompareAndSwap(false, true) {
			fn()
		}
	})
	if err != nil {
		t.Fatalf("register query hook: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Query().Remove(name)
	})
}
