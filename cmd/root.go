package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projecteru2/envdo/config"
	"github.com/projecteru2/envdo/policy"
)

const runHelp = `Drive VM runstates (start, stop, suspend, resume, halt, restart) across
cloud environments through the REST API.

Without -e every environment visible to the account is processed.
Check the My Account tab to find a current API Security Token value.
Credentials may also come from ENVDO_USERNAME / ENVDO_TOKEN or a .env file.`

// newRootCmd builds the envdo command tree. Each call owns its flag set and
// viper instance.
func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		envIDs  []int
		command string
	)
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "envdo [flags] [ENV_ID...]",
		Short: "envdo - VM runstate control for cloud environments",
		Long:  runHelp,
		Example: `  envdo -u myUserName -t myAPISecurityToken
  envdo -u myUserName -t myAPISecurityToken -e 123 -e 456 -c halt`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := policy.Lookup(command); err != nil {
				return err
			}
			ids, err := environmentIDs(envIDs, args)
			if err != nil {
				return err
			}
			// past argument validation, errors are not usage problems.
			cmd.SilenceUsage = true

			ctx := commandContext(cmd)
			conf, err := loadConfig(ctx, v, cfgFile)
			if err != nil {
				return err
			}
			return runCommand(ctx, conf, command, ids, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file path")
	f.StringP("username", "u", "", "user name for your cloud account (required)")
	f.StringP("token", "t", "", "API security token for your cloud account (required)")
	f.IntSliceVarP(&envIDs, "environment", "e", nil, "environment ID(s) to operate against (default: all)")
	f.StringVarP(&command, "command", "c", policy.CommandList, "one of: "+strings.Join(policy.Commands(), ", "))
	f.String("endpoint", "", "REST API base URL")
	f.Duration("poll-interval", 0, "wait between runstate polls")
	f.Int("poll-limit", 0, "maximum polls per wait")
	f.Int("pool-size", 0, "environments processed at once")
	f.String("run-dir", "", "directory for environment lock files")
	f.String("log-level", "", "log level")

	for key, flag := range map[string]string{
		"username":      "username",
		"token":         "token",
		"endpoint":      "endpoint",
		"poll_interval": "poll-interval",
		"poll_limit":    "poll-limit",
		"pool_size":     "pool-size",
		"run_dir":       "run-dir",
		"log.level":     "log-level",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig layers defaults, .env, ENVDO_* variables, the config file and
// flags, then sets up logging.
func loadConfig(ctx context.Context, v *viper.Viper, cfgFile string) (*config.Config, error) {
	_ = godotenv.Load() // optional; missing .env is OK

	conf := config.DefaultConfig()
	v.SetDefault("username", "")
	v.SetDefault("token", "")
	v.SetDefault("endpoint", conf.Endpoint)
	v.SetDefault("poll_interval", conf.PollInterval)
	v.SetDefault("poll_limit", conf.PollLimit)
	v.SetDefault("pool_size", conf.PoolSize)
	v.SetDefault("http_timeout", conf.HTTPTimeout)
	v.SetDefault("run_dir", conf.RunDir)
	v.SetDefault("log.level", conf.Log.Level)

	v.SetEnvPrefix("ENVDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := log.SetupLog(ctx, &conf.Log, ""); err != nil {
		return nil, fmt.Errorf("setup log: %w", err)
	}
	return conf, nil
}

// environmentIDs merges -e values and positional ids, keeping input order.
func environmentIDs(flagIDs []int, args []string) ([]string, error) {
	ids := make([]string, 0, len(flagIDs)+len(args))
	for _, id := range flagIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid environment id %q: must be an integer", arg)
		}
		ids = append(ids, strconv.Itoa(id))
	}
	return ids, nil
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return newRootCmd().ExecuteContext(ctx)
}

// newCommandContext is canceled by SIGINT/SIGTERM; an interrupted wait stops
// polling and exits nonzero.
func newCommandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
