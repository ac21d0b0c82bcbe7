package database

import (
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OpenSQLite 打开一个嵌入式 SQLite 库，用于本地开发和测试。
// 连接数固定为 1：SQLite 只允许单写者，并且 ":memory:" 库在每个连接上都是独立的。
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: NewGormLogger(0)})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", dsn)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB from gorm")
	}
	sqlDB.SetMaxOpenConns(1)
	zlog.Info().Str("dsn", dsn).Msg("Opened SQLite database.")
	return db, nil
}

// Open 按配置选择数据库：设置了 SQLitePath 时使用 SQLite，否则连接 MySQL。
func Open(c MySQLConfig) (*gorm.DB, error) {
	if c.SQLitePath != "" {
		return OpenSQLite(c.SQLitePath)
	}
	return OpenMySQL(c)
}
