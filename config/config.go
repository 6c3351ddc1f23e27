package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	ServerCORSOrigins  []string      `mapstructure:"server_cors_origins"`
	ServerMaxInFlight  int64         `mapstructure:"server_max_in_flight"`

	// 日志配置
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBSSLMode         string `mapstructure:"db_ssl_mode"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 存储配置
	StorageType           string        `mapstructure:"storage_type"`
	StorageLocalPath      string        `mapstructure:"storage_local_path"`
	StorageMinioEndpoint  string        `mapstructure:"storage_minio_endpoint"`
	StorageMinioAccessKey string        `mapstructure:"storage_minio_access_key"`
	StorageMinioSecretKey string        `mapstructure:"storage_minio_secret_key"`
	StorageMinioBucket    string        `mapstructure:"storage_minio_bucket"`
	StorageMinioUseSSL    bool          `mapstructure:"storage_minio_use_ssl"`
	StorageWebDAVURL      string        `mapstructure:"storage_webdav_url"`
	StorageWebDAVUsername string        `mapstructure:"storage_webdav_username"`
	StorageWebDAVPassword string        `mapstructure:"storage_webdav_password"`
	StorageWebDAVRootPath string        `mapstructure:"storage_webdav_root_path"`
	StorageWebDAVTimeout  time.Duration `mapstructure:"storage_webdav_timeout"`

	// 缓存配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`
	CacheUserTTL       time.Duration `mapstructure:"cache_user_ttl"`

	// JWT 配置
	JWTSecret         string        `mapstructure:"jwt_secret"`
	JWTAccessTokenTTL time.Duration `mapstructure:"jwt_access_token_ttl"`

	// 默认管理员
	DefaultAdminUsername string `mapstructure:"default_admin_username"`
	DefaultAdminPassword string `mapstructure:"default_admin_password"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitAuthRPS    float64       `mapstructure:"rate_limit_auth_rps"`
	RateLimitAuthBurst  int           `mapstructure:"rate_limit_auth_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 上传配置
	UploadMaxSizeMB       int `mapstructure:"upload_max_size_mb"`
	UploadMaxBatchTotalMB int `mapstructure:"upload_max_batch_total_mb"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		cfg, err := Load(viper.GetString("config_file_path"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(1)
		}
		globalConfig = cfg
	})
}

func Get() *Config {
	if globalConfig == nil {
		InitConfig()
	}
	return globalConfig
}

// Load 读取 .env、可选配置文件与环境变量，后者优先
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8000)
	v.SetDefault("server_read_timeout", "15s")
	v.SetDefault("server_write_timeout", "60s")
	v.SetDefault("server_idle_timeout", "120s")
	v.SetDefault("server_cors_origins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:8081",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:8081",
	})
	v.SetDefault("server_max_in_flight", 100)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_username", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "yolo_annotator")
	v.SetDefault("db_ssl_mode", "disable")
	v.SetDefault("db_file_path", "./data/annotator.db")
	v.SetDefault("db_max_open_conns", 50)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_lifetime", 3600)

	v.SetDefault("storage_type", "local")
	v.SetDefault("storage_local_path", "./data/uploads")
	v.SetDefault("storage_minio_endpoint", "")
	v.SetDefault("storage_minio_access_key", "")
	v.SetDefault("storage_minio_secret_key", "")
	v.SetDefault("storage_minio_bucket", "yolo-annotator")
	v.SetDefault("storage_minio_use_ssl", false)
	v.SetDefault("storage_webdav_url", "")
	v.SetDefault("storage_webdav_username", "")
	v.SetDefault("storage_webdav_password", "")
	v.SetDefault("storage_webdav_root_path", "/yolo-annotator")
	v.SetDefault("storage_webdav_timeout", "30s")

	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_redis_addr", "localhost:6379")
	v.SetDefault("cache_redis_password", "")
	v.SetDefault("cache_redis_db", 0)
	v.SetDefault("cache_user_ttl", "1m")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_access_token_ttl", "30m")

	v.SetDefault("default_admin_username", "admin")
	v.SetDefault("default_admin_password", "")

	v.SetDefault("rate_limit_api_rps", 30.0)
	v.SetDefault("rate_limit_api_burst", 60)
	v.SetDefault("rate_limit_auth_rps", 0.5)
	v.SetDefault("rate_limit_auth_burst", 5)
	v.SetDefault("rate_limit_expire_time", "10m")

	v.SetDefault("upload_max_size_mb", 50)
	v.SetDefault("upload_max_batch_total_mb", 500)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported db_type: %s", c.DBType)
	}

	switch c.StorageType {
	case "local", "minio", "webdav":
	default:
		return fmt.Errorf("unsupported storage_type: %s", c.StorageType)
	}

	switch c.CacheType {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache_type: %s", c.CacheType)
	}

	if c.UploadMaxSizeMB <= 0 {
		return fmt.Errorf("upload_max_size_mb must be positive, got %d", c.UploadMaxSizeMB)
	}
	if c.JWTAccessTokenTTL <= 0 {
		return fmt.Errorf("jwt_access_token_ttl must be positive")
	}
	return nil
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8000
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// UploadMaxSizeBytes 单文件上传上限
func (c *Config) UploadMaxSizeBytes() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}
