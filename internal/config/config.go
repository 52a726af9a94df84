package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Store         StoreConfig         `json:"store"`
	Ledger        LedgerConfig        `json:"ledger"`
	Settlement    SettlementConfig    `json:"settlement"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
	Notifications NotificationsConfig `json:"notifications"`
	Worker        WorkerConfig        `json:"worker"`
}

// Duration reads either a Go duration string ("90s") or integer nanoseconds
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(int64(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	Mode         string   `json:"mode"` // gin mode: debug, release, test
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout"`
}

// StoreConfig selects where the platform snapshot lives
type StoreConfig struct {
	Driver   string         `json:"driver"` // file, postgres, mongo, memory
	Path     string         `json:"path"`
	Database DatabaseConfig `json:"database"`
	MongoURI string         `json:"mongo_uri"`
	MongoDB  string         `json:"mongo_db"`
	RedisURL string         `json:"redis_url"` // optional cross-process snapshot and saga locks
	LockTTL  Duration       `json:"lock_ttl"`
	// SagaLockTTL bounds how long one instance may hold the saga lock; it must
	// outlast the slowest saga (several ledger round trips)
	SagaLockTTL Duration `json:"saga_lock_ttl"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// LedgerConfig selects and tunes the ledger client
type LedgerConfig struct {
	Mode                string   `json:"mode"` // xrpl, simulated
	RPCURL              string   `json:"rpc_url"`
	FaucetURL           string   `json:"faucet_url"`
	RequestTimeout      Duration `json:"request_timeout"`
	ConfirmationTimeout Duration `json:"confirmation_timeout"`
	PollInterval        Duration `json:"poll_interval"`
	LastLedgerOffset    uint32   `json:"last_ledger_offset"`
	MaxFeeDrops         int64    `json:"max_fee_drops"`
	OperationTimeout    Duration `json:"operation_timeout"`
}

// SettlementConfig holds the settlement policy constants
type SettlementConfig struct {
	EscrowReleaseDelay   Duration `json:"escrow_release_delay"`
	EscrowCancelAfter    Duration `json:"escrow_cancel_after"`
	TrustLimitMultiplier int64    `json:"trust_limit_multiplier"`
	TokenRatio           int64    `json:"token_ratio"`
	MicroloanGraceDays   int      `json:"microloan_grace_days"`
	ReserveXRP           int64    `json:"reserve_xrp"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string   `json:"jwt_secret"`
	TokenTTL  Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // console, json
}

// NotificationsConfig
type NotificationsConfig struct {
	SNSTopicARN string `json:"sns_topic_arn"`
	AWSRegion   string `json:"aws_region"`
}

// WorkerConfig drives the scheduled jobs
type WorkerConfig struct {
	ReconcileSchedule string   `json:"reconcile_schedule"`
	BackupSchedule    string   `json:"backup_schedule"`
	OverdueSchedule   string   `json:"overdue_schedule"`
	BackupBucket      string   `json:"backup_bucket"`
	BackupPrefix      string   `json:"backup_prefix"`
	S3Endpoint        string   `json:"s3_endpoint"`
	StaleAfter        Duration `json:"stale_after"`
	SummaryCacheTTL   Duration `json:"summary_cache_ttl"`
}

// Default returns the configuration used when no file or environment overrides apply
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "debug",
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{120 * time.Second},
			IdleTimeout:  Duration{60 * time.Second},
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   "data/platform.json",
			Database: DatabaseConfig{
				Host:    "localhost",
				Port:    5432,
				User:    os.Getenv("USER"),
				DBName:  "funding_portal",
				SSLMode: "disable",
			},
			MongoDB: "funding_portal",
			LockTTL:     Duration{30 * time.Second},
			SagaLockTTL: Duration{10 * time.Minute},
		},
		Ledger: LedgerConfig{
			Mode:                "xrpl",
			RPCURL:              "https://s.altnet.rippletest.net:51234",
			FaucetURL:           "https://faucet.altnet.rippletest.net/accounts",
			RequestTimeout:      Duration{15 * time.Second},
			ConfirmationTimeout: Duration{60 * time.Second},
			PollInterval:        Duration{time.Second},
			LastLedgerOffset:    20,
			MaxFeeDrops:         2000,
			OperationTimeout:    Duration{90 * time.Second},
		},
		Settlement: SettlementConfig{
			EscrowReleaseDelay:   Duration{120 * time.Second},
			EscrowCancelAfter:    Duration{30 * 24 * time.Hour},
			TrustLimitMultiplier: 10,
			TokenRatio:           1,
			MicroloanGraceDays:   7,
			ReserveXRP:           2,
		},
		Security: SecurityConfig{
			TokenTTL: Duration{12 * time.Hour},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Notifications: NotificationsConfig{
			AWSRegion: "us-east-1",
		},
		Worker: WorkerConfig{
			ReconcileSchedule: "@every 5m",
			BackupSchedule:    "0 3 * * *",
			OverdueSchedule:   "0 * * * *",
			BackupPrefix:      "snapshots",
			StaleAfter:        Duration{15 * time.Minute},
			SummaryCacheTTL:   Duration{30 * time.Second},
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	strs := map[string]*string{
		"SERVER_HOST":           &config.Server.Host,
		"GIN_MODE":              &config.Server.Mode,
		"STORE_DRIVER":          &config.Store.Driver,
		"STORE_PATH":            &config.Store.Path,
		"DATABASE_HOST":         &config.Store.Database.Host,
		"DATABASE_USER":         &config.Store.Database.User,
		"DATABASE_PASSWORD":     &config.Store.Database.Password,
		"DATABASE_DBNAME":       &config.Store.Database.DBName,
		"DATABASE_SSLMODE":      &config.Store.Database.SSLMode,
		"MONGO_URI":             &config.Store.MongoURI,
		"MONGO_DB":              &config.Store.MongoDB,
		"REDIS_URL":             &config.Store.RedisURL,
		"LEDGER_MODE":           &config.Ledger.Mode,
		"XRPL_RPC_URL":          &config.Ledger.RPCURL,
		"XRPL_FAUCET_URL":       &config.Ledger.FaucetURL,
		"JWT_SECRET":            &config.Security.JWTSecret,
		"LOG_LEVEL":             &config.Logging.Level,
		"LOG_FORMAT":            &config.Logging.Format,
		"SNS_TOPIC_ARN":         &config.Notifications.SNSTopicARN,
		"AWS_REGION":            &config.Notifications.AWSRegion,
		"WORKER_RECONCILE_CRON": &config.Worker.ReconcileSchedule,
		"WORKER_BACKUP_CRON":    &config.Worker.BackupSchedule,
		"WORKER_OVERDUE_CRON":   &config.Worker.OverdueSchedule,
		"BACKUP_BUCKET":         &config.Worker.BackupBucket,
		"S3_ENDPOINT":           &config.Worker.S3Endpoint,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SERVER_PORT":   &config.Server.Port,
		"DATABASE_PORT": &config.Store.Database.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"LEDGER_OPERATION_TIMEOUT": &config.Ledger.OperationTimeout,
		"ESCROW_RELEASE_DELAY":     &config.Settlement.EscrowReleaseDelay,
		"ESCROW_CANCEL_AFTER":      &config.Settlement.EscrowCancelAfter,
		"RECONCILE_STALE_AFTER":    &config.Worker.StaleAfter,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			dst.Duration = d
		}
	}
	return nil
}

// Validate rejects unknown drivers and modes
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	switch c.Store.Driver {
	case "file", "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "mongo" && c.Store.MongoURI == "" {
		return fmt.Errorf("store.mongo_uri is required for the mongo driver")
	}

	c.Ledger.Mode = strings.ToLower(c.Ledger.Mode)
	switch c.Ledger.Mode {
	case "xrpl", "simulated":
	default:
		return fmt.Errorf("unknown ledger mode %q", c.Ledger.Mode)
	}
	if c.Ledger.Mode == "xrpl" && c.Ledger.RPCURL == "" {
		return fmt.Errorf("ledger.rpc_url is required for the xrpl mode")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
