package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Roster     RosterConfig     `mapstructure:"roster"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Timetable  TimetableConfig  `mapstructure:"timetable"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	RateLimit       int           `mapstructure:"rate_limit"` // 登录/注册/刷新接口按 IP 限流
	RateWindow      time.Duration `mapstructure:"rate_window"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RosterConfig 花名册文件配置
// FilePattern 中的 %s 会被替换为班级编号，例如 section%s.xlsx
type RosterConfig struct {
	Dir         string `mapstructure:"dir"`
	FilePattern string `mapstructure:"file_pattern"`
}

// AttendanceConfig 签到会话配置
type AttendanceConfig struct {
	Sections         []string      `mapstructure:"sections"`
	Durations        []int         `mapstructure:"durations"` // 单位：秒
	HistoryLimit     int           `mapstructure:"history_limit"`
	EnforceDeadline  bool          `mapstructure:"enforce_deadline"`
	SubmitRateLimit  int           `mapstructure:"submit_rate_limit"`
	SubmitRateWindow time.Duration `mapstructure:"submit_rate_window"`
}

// TimetableConfig 课表配置
// Timezone 用于解释 ICS 中不带时区的时间
type TimetableConfig struct {
	Timezone       string `mapstructure:"timezone"`
	MaxImportBytes int64  `mapstructure:"max_import_bytes"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.base_url", "http://localhost:5000")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "bytecopied")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "24h")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.rate_limit", 20)
	v.SetDefault("auth.rate_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("roster.dir", "assets/roll-sheets")
	v.SetDefault("roster.file_pattern", "section%s.xlsx")

	v.SetDefault("attendance.sections", []string{"1", "2", "3", "4"})
	v.SetDefault("attendance.durations", []int{30, 40, 50, 60})
	v.SetDefault("attendance.history_limit", 10)
	v.SetDefault("attendance.enforce_deadline", true)
	v.SetDefault("attendance.submit_rate_limit", 10)
	v.SetDefault("attendance.submit_rate_window", "1m")

	v.SetDefault("timetable.timezone", "Asia/Kolkata")
	v.SetDefault("timetable.max_import_bytes", 512<<10)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("BYTECOPIED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if len(c.Attendance.Sections) == 0 {
		return fmt.Errorf("配置校验失败: attendance.sections 不能为空")
	}
	if len(c.Attendance.Durations) == 0 {
		return fmt.Errorf("配置校验失败: attendance.durations 不能为空")
	}
	for _, d := range c.Attendance.Durations {
		if d <= 0 {
			return fmt.Errorf("配置校验失败: attendance.durations 必须为正数，实际 %d", d)
		}
	}
	if !strings.Contains(c.Roster.FilePattern, "%s") {
		return fmt.Errorf("配置校验失败: roster.file_pattern 必须包含 %%s 占位符")
	}
	if c.Timetable.MaxImportBytes <= 0 {
		return fmt.Errorf("配置校验失败: timetable.max_import_bytes 必须为正数")
	}
	return nil
}
