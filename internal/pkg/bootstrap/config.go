package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"digigoods/internal/pkg/database"
	"digigoods/internal/pkg/redis"
)

// Config 是所有服务共用的配置，先读 yaml 文件再用环境变量覆盖。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	Name            string         `yaml:"name"`
	Port            int            `yaml:"port"`
	LogLevel        string         `yaml:"log_level"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	CORSOrigins     []string       `yaml:"cors_origins"`
	Checkout        CheckoutConfig `yaml:"checkout"`
}

// CheckoutConfig 控制结算流程中的可调参数。
type CheckoutConfig struct {
	MaxDiscountRatio float64       `yaml:"max_discount_ratio"`
	TimeZone         string        `yaml:"time_zone"`
	LockBackend      string        `yaml:"lock_backend"` // none | redis | zookeeper
	LockWait         time.Duration `yaml:"lock_wait"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
}

type InfraConfig struct {
	MySQL     database.MySQLConfig `yaml:"mysql"`
	Redis     redis.Config         `yaml:"redis"`
	Kafka     KafkaConfig          `yaml:"kafka"`
	Jaeger    JaegerConfig         `yaml:"jaeger"`
	Nacos     NacosConfig          `yaml:"nacos"`
	Zookeeper ZookeeperConfig      `yaml:"zookeeper"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	OrderTopic string   `yaml:"order_topic"`
	GroupID    string   `yaml:"group_id"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// NacosConfig 的 ServerAddrs 为空时不做服务注册。
type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

const (
	LockBackendNone      = "none"
	LockBackendRedis     = "redis"
	LockBackendZookeeper = "zookeeper"
)

// DefaultConfig 返回一份可以直接在本地跑起来的默认配置。
func DefaultConfig(serviceName string) *Config {
	return &Config{
		App: AppConfig{
			Name:            serviceName,
			Port:            8080,
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			Checkout: CheckoutConfig{
				MaxDiscountRatio: 0.80,
				TimeZone:         "UTC",
				LockBackend:      LockBackendNone,
				LockWait:         3 * time.Second,
				LockTTL:          10 * time.Second,
				IdempotencyTTL:   24 * time.Hour,
			},
		},
		Infra: InfraConfig{
			MySQL: database.MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				User:            "root",
				Database:        "digigoods",
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
				SlowThreshold:   200 * time.Millisecond,
			},
			Kafka:     KafkaConfig{OrderTopic: "order-events", GroupID: serviceName},
			Jaeger:    JaegerConfig{SampleRatio: 1.0},
			Nacos:     NacosConfig{Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second},
		},
	}
}

// LoadConfig 按 默认值 -> yaml 文件 -> 环境变量 的顺序合并配置并校验。
// path 为空时读取 CONFIG_PATH，再退回到 configs/<service>.yaml；文件不存在不算错误。
func LoadConfig(serviceName, path string) (*Config, error) {
	cfg := DefaultConfig(serviceName)

	if path == "" {
		path = getEnv("CONFIG_PATH", "configs/"+serviceName+".yaml")
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && err == nil {
			if *dst, err = strconv.Atoi(v); err != nil {
				err = errors.Wrapf(err, "invalid %s", key)
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && err == nil {
			if *dst, err = strconv.ParseFloat(v, 64); err != nil {
				err = errors.Wrapf(err, "invalid %s", key)
			}
		}
	}
	setList := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = splitCSV(v)
		}
	}

	setInt("HTTP_PORT", &c.App.Port)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)

	c.Infra.MySQL.Host = getEnv("MYSQL_HOST", c.Infra.MySQL.Host)
	setInt("MYSQL_PORT", &c.Infra.MySQL.Port)
	c.Infra.MySQL.User = getEnv("MYSQL_USER", c.Infra.MySQL.User)
	c.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", c.Infra.MySQL.Password)
	c.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", c.Infra.MySQL.Database)
	c.Infra.MySQL.SQLitePath = getEnv("SQLITE_PATH", c.Infra.MySQL.SQLitePath)

	setList("REDIS_ADDRS", &c.Infra.Redis.Addrs)
	setList("KAFKA_BROKERS", &c.Infra.Kafka.Brokers)
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", c.Infra.Zookeeper.Servers)

	c.App.Checkout.LockBackend = getEnv("CHECKOUT_LOCK_BACKEND", c.App.Checkout.LockBackend)
	setFloat("CHECKOUT_MAX_DISCOUNT_RATIO", &c.App.Checkout.MaxDiscountRatio)
	return err
}

// Validate 检查配置是否自洽。
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.App.Port)
	}
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.App.LogLevel)
	}
	if c.App.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}

	co := c.App.Checkout
	if co.MaxDiscountRatio <= 0 || co.MaxDiscountRatio > 1 {
		return fmt.Errorf("max_discount_ratio must be in (0, 1], got %v", co.MaxDiscountRatio)
	}
	if _, err := time.LoadLocation(co.TimeZone); err != nil {
		return errors.Wrapf(err, "invalid time_zone %q", co.TimeZone)
	}
	if co.LockWait <= 0 || co.LockTTL <= 0 || co.IdempotencyTTL <= 0 {
		return errors.New("checkout lock_wait, lock_ttl and idempotency_ttl must be positive")
	}
	switch co.LockBackend {
	case LockBackendNone:
	case LockBackendRedis:
		if len(c.Infra.Redis.Addrs) == 0 {
			return errors.New("lock_backend redis requires redis addrs")
		}
	case LockBackendZookeeper:
		if c.Infra.Zookeeper.Servers == "" {
			return errors.New("lock_backend zookeeper requires zookeeper servers")
		}
	default:
		return fmt.Errorf("unknown lock_backend %q", co.LockBackend)
	}

	if c.Infra.Jaeger.SampleRatio < 0 || c.Infra.Jaeger.SampleRatio > 1 {
		return fmt.Errorf("jaeger sample_ratio must be in [0, 1], got %v", c.Infra.Jaeger.SampleRatio)
	}
	return nil
}

// Location 返回结算比较日期时使用的时区。Validate 已保证其合法。
func (c CheckoutConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
