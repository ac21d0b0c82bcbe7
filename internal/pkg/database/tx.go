package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Transactor 是基于 gorm 的工作单元实现。
// 事务句柄放在 context 中向下传递，仓储通过 Conn 取得当前连接，
// 这样一次结账里的所有读写都落在同一个事务上。
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction 在事务中执行 fn；fn 返回错误（或 panic）时回滚，否则提交。
// 已经处于事务中时直接复用外层事务。
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn 返回 ctx 绑定的事务，没有事务时返回带 ctx 的普通连接。
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// InTransaction 报告 ctx 是否已绑定事务。
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}
