package config

import (
	"fmt"
	"time"

	"github.com/luximus/flowbot/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	HttpPort        int
	LogLevel        string
	LogDevelopment  bool
	StorageType     StorageType
	RedisConfig     RedisStorageConfig
	FlowTTL         time.Duration
	DBPath          string
	Wpp             WppConfig
	Letta           LettaConfig
	Google          GoogleConfig
	ShortLinks      ShortLinkConfig
	Poll            PollConfig
	Dispatch        DispatchConfig
	SweepInterval   time.Duration
	AnalyticsConfig analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Password  string
	DB        int
	Namespace string
}

type WppConfig struct {
	BaseURL          string
	SecretKey        string
	PrincipalSession string
	PrincipalToken   string
	WebhookURL       string
}

type LettaConfig struct {
	BaseURL string
	Token   string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
	StateTTL     time.Duration
}

type ShortLinkConfig struct {
	BaseURL string
	TTL     time.Duration
}

type PollConfig struct {
	Interval time.Duration
	Attempts uint64
}

type DispatchConfig struct {
	Partitions int
	Capacity   int
	Timeout    time.Duration
}

func (c Config) Validate() error {
	switch c.StorageType {
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 || len(c.RedisConfig.Addrs[0]) == 0 {
			return fmt.Errorf("redis storage needs at least one address")
		}
	case STORAGE_TYPE_INMEM:
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	switch c.AnalyticsConfig.CollectorType {
	case analytics.PROMETHEUS_DATA_COLLECTOR, analytics.NOOP_DATA_COLLECTOR, "":
	case analytics.LOG_FILE_DATA_COLLECTOR:
		if len(c.AnalyticsConfig.FileName) == 0 {
			return fmt.Errorf("log file collector needs analytics-file")
		}
	default:
		return fmt.Errorf("unknown analytics type %q", c.AnalyticsConfig.CollectorType)
	}
	if c.HttpPort <= 0 || c.HttpPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HttpPort)
	}
	if c.FlowTTL <= 0 {
		return fmt.Errorf("flow ttl must be positive")
	}
	if len(c.DBPath) == 0 {
		return fmt.Errorf("db path is not set")
	}
	if len(c.Google.ClientID) > 0 && len(c.Google.StateSecret) == 0 {
		return fmt.Errorf("google integration needs a state secret")
	}
	return nil
}
