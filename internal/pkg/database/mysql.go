package database

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLConfig 描述了 MySQL 连接参数。
type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SlowThreshold   time.Duration `yaml:"slow_threshold"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	// SQLitePath 非空时改用嵌入式 SQLite，忽略上面的连接参数。
	SQLitePath      string        `yaml:"sqlite_path"`
}

// DSN 使用驱动自带的 Config 拼装连接串，避免手写转义。
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL 打开 gorm 连接并配置连接池。
func OpenMySQL(c MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(c.DSN()), &gorm.Config{
		Logger: NewGormLogger(c.SlowThreshold),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open mysql %s:%d/%s", c.Host, c.Port, c.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB from gorm")
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	}

	zlog.Info().Str("addr", fmt.Sprintf("%s:%d", c.Host, c.Port)).Str("database", c.Database).Msg("✅ Connected to MySQL.")
	return db, nil
}

// NewGormLogger 把 gorm 的日志输出接到全局 zerolog 上。
func NewGormLogger(slowThreshold time.Duration) gormlogger.Interface {
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}
	lg := zlog.Logger.With().Str("component", "gorm").Logger()
	return gormlogger.New(gormWriter{lg: lg}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// AutoMigrate 迁移各个上下文注册的表模型。
func AutoMigrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// gormWriter 把 gorm 的 Printf 输出转为 warn 级别的 zerolog 事件。
// zerolog 自带的 Printf 走 debug 级别，会被全局 info 级别过滤掉。
type gormWriter struct {
	lg zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.lg.Warn().Msgf(format, args...)
}
