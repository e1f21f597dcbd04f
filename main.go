package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luximus/flowbot/agent"
	"github.com/luximus/flowbot/analytics"
	"github.com/luximus/flowbot/config"
	"github.com/luximus/flowbot/logger"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8000, "http port for rest endpoints")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Bool("log-dev", false, "human readable development logs")

	cmd.Flags().String("storage-impl", "redis", "implementation of the flow state storage (redis, memory)")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-db", 0, "redis database")
	cmd.Flags().String("namespace", "", "key prefix used in storage")
	cmd.Flags().Duration("flow-ttl", time.Hour, "how long an idle flow state is kept")
	cmd.Flags().String("db-path", "./data/flowbot.db", "path of the sqlite user database")

	cmd.Flags().String("wpp-base-url", "http://localhost:21465", "chat gateway base url")
	cmd.Flags().String("wpp-secret-key", "", "chat gateway secret key used to generate session tokens")
	cmd.Flags().String("wpp-principal-session", "principal", "session the bot talks through")
	cmd.Flags().String("wpp-principal-token", "", "bearer token of the principal session")
	cmd.Flags().String("wpp-webhook-url", "", "webhook url registered on new sessions")

	cmd.Flags().String("letta-base-url", "http://localhost:8283", "agent host base url")
	cmd.Flags().String("letta-token", "", "agent host password")

	cmd.Flags().String("google-client-id", "", "google oauth client id")
	cmd.Flags().String("google-client-secret", "", "google oauth client secret")
	cmd.Flags().String("google-redirect-url", "", "google oauth redirect url")
	cmd.Flags().String("state-secret", "", "secret used to sign the oauth state")
	cmd.Flags().Duration("state-ttl", 5*time.Minute, "validity of the oauth state")

	cmd.Flags().String("short-link-base-url", "http://localhost:8000/s", "public base url of short links")
	cmd.Flags().Duration("short-link-ttl", 10*time.Minute, "validity of short links")

	cmd.Flags().String("analytics-type", string(analytics.PROMETHEUS_DATA_COLLECTOR), "step collector (prometheus, LOG_FILE_DATA_COLLECTOR, none)")
	cmd.Flags().String("analytics-file", "", "output file of the log file collector")

	cmd.Flags().Duration("poll-interval", 2*time.Second, "interval between chat gateway polls inside a step")
	cmd.Flags().Uint64("poll-attempts", 10, "retries of a chat gateway poll inside a step")

	cmd.Flags().Int("webhook-workers", 8, "number of webhook workers")
	cmd.Flags().Int("webhook-queue", 128, "queued webhook events per worker")
	cmd.Flags().Duration("webhook-timeout", 2*time.Minute, "processing deadline of one webhook event")
	cmd.Flags().Duration("marker-sweep-interval", 5*time.Minute, "how often integration markers of finished flows are cleared")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	viper.SetEnvPrefix("FLOWBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if len(configFile) > 0 {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.LogDevelopment = viper.GetBool("log-dev")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.DB = viper.GetInt("redis-db")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.FlowTTL = viper.GetDuration("flow-ttl")
	c.cfg.DBPath = viper.GetString("db-path")

	c.cfg.Wpp.BaseURL = viper.GetString("wpp-base-url")
	c.cfg.Wpp.SecretKey = viper.GetString("wpp-secret-key")
	c.cfg.Wpp.PrincipalSession = viper.GetString("wpp-principal-session")
	c.cfg.Wpp.PrincipalToken = viper.GetString("wpp-principal-token")
	c.cfg.Wpp.WebhookURL = viper.GetString("wpp-webhook-url")

	c.cfg.Letta.BaseURL = viper.GetString("letta-base-url")
	c.cfg.Letta.Token = viper.GetString("letta-token")

	c.cfg.Google.ClientID = viper.GetString("google-client-id")
	c.cfg.Google.ClientSecret = viper.GetString("google-client-secret")
	c.cfg.Google.RedirectURL = viper.GetString("google-redirect-url")
	c.cfg.Google.StateSecret = viper.GetString("state-secret")
	c.cfg.Google.StateTTL = viper.GetDuration("state-ttl")

	c.cfg.ShortLinks.BaseURL = viper.GetString("short-link-base-url")
	c.cfg.ShortLinks.TTL = viper.GetDuration("short-link-ttl")

	c.cfg.AnalyticsConfig.CollectorType = analytics.DataCollectorType(viper.GetString("analytics-type"))
	c.cfg.AnalyticsConfig.FileName = viper.GetString("analytics-file")

	c.cfg.Poll.Interval = viper.GetDuration("poll-interval")
	c.cfg.Poll.Attempts = viper.GetUint64("poll-attempts")

	c.cfg.Dispatch.Partitions = viper.GetInt("webhook-workers")
	c.cfg.Dispatch.Capacity = viper.GetInt("webhook-queue")
	c.cfg.Dispatch.Timeout = viper.GetDuration("webhook-timeout")
	c.cfg.SweepInterval = viper.GetDuration("marker-sweep-interval")

	return logger.Init(c.cfg.LogLevel, c.cfg.LogDevelopment)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	defer logger.Sync()
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "flowbot",
		Short:   "resumable onboarding flows for a chat assistant",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
