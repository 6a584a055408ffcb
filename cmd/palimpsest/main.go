package main

import (
	"fmt"
	"os"

	"github.com/go-go-golems/palimpsest/pkg/kv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "palimpsest",
	Short: "Inspect and replay conversation version history",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func initConfig() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	return nil
}

// openSnapshotStore builds the configured key-value backend. Defaults to a
// file store under the snapshot directory.
func openSnapshotStore() (kv.Store, error) {
	switch backend := viper.GetString("storage.backend"); backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: viper.GetString("storage.redis-addr"),
		})
		return kv.NewRedisStore(client), nil
	case "memory":
		return kv.NewMemoryStore(), nil
	case "", "file":
		return kv.NewFileStore(viper.GetString("storage.dir"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "config file")
	rootCmd.PersistentFlags().String("storage-backend", "file", "snapshot storage backend (file, redis, memory)")
	rootCmd.PersistentFlags().String("storage-dir", ".palimpsest", "snapshot directory for the file backend")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "redis address for the redis backend")

	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage-backend"))
	_ = viper.BindPFlag("storage.dir", rootCmd.PersistentFlags().Lookup("storage-dir"))
	_ = viper.BindPFlag("storage.redis-addr", rootCmd.PersistentFlags().Lookup("redis-addr"))

	viper.SetEnvPrefix("PALIMPSEST")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newReplayCommand())
	rootCmd.AddCommand(newDemoCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
