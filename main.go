package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harishgarg/procflow/agent"
	"github.com/harishgarg/procflow/config"
	"github.com/harishgarg/procflow/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "memory", "implementation of underline storage")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "procflow", "namespace used in redis storage")
	cmd.Flags().String("sqlite-path", "procflow.db", "path of the sqlite database file")
	cmd.Flags().String("file-store-dir", "data", "directory for uploaded files")
	cmd.Flags().Duration("external-call-timeout", 30*time.Second, "default timeout for external calls")
	cmd.Flags().Duration("instance-retention", 0, "drop terminal instances older than this, 0 keeps forever")
	cmd.Flags().String("audit-log-file", "", "file receiving the execution audit trail")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	cmd.Flags().StringToString("env", nil, "values backing env: references in process expressions")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.SqliteConfig.Path = viper.GetString("sqlite-path")
	c.cfg.FileStoreDir = viper.GetString("file-store-dir")
	c.cfg.ExternalCallTimeout = viper.GetDuration("external-call-timeout")
	c.cfg.InstanceRetention = viper.GetDuration("instance-retention")
	c.cfg.AuditLogFile = viper.GetString("audit-log-file")
	c.cfg.Env = viper.GetStringMapString("env")
	return logger.InitLogger(viper.GetBool("debug"))
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "procflow",
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
