package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"signal_bot/pkg/logger"
)

const envPrefix = "SIGNAL_BOT_SUPERVISE"

// supervise перезапускает cmd/bot после фатальных ошибок.
//
//	supervise [path/to/bot [args...]]
//
// Настройки: SIGNAL_BOT_SUPERVISE_MIN_BACKOFF, _MAX_BACKOFF, _STABLE_AFTER,
// _MAX_RESTARTS, _STOP_TIMEOUT, _BINARY.
func main() {
	if _, _, err := logger.New(logger.Config{Level: "info"}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.SetServiceName("signal_bot_supervise")

	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		logger.Fatal("supervise: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("supervising %s %s", opts.Binary, strings.Join(opts.Args, " "))
	code := newSupervisor(opts, execRun(opts)).loop(ctx)
	stop()
	os.Exit(code)
}

func loadOptions(args []string) (options, error) {
	v := viper.New()
	v.SetDefault("binary", "./bot")
	v.SetDefault("args", []string{})
	v.SetDefault("min_backoff", "1s")
	v.SetDefault("max_backoff", "1m")
	v.SetDefault("stable_after", "2m")
	v.SetDefault("max_restarts", 0)
	v.SetDefault("stop_timeout", "30s")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if len(args) > 0 {
		v.Set("binary", args[0])
		v.Set("args", args[1:])
	}

	var opts options
	if err := v.Unmarshal(&opts); err != nil {
		return options{}, errors.Wrap(err, "decode options")
	}
	if opts.Binary == "" {
		return options{}, errors.New("binary is required")
	}
	if opts.MinBackoff <= 0 || opts.MaxBackoff < opts.MinBackoff {
		return options{}, errors.Errorf("bad backoff range %s..%s", opts.MinBackoff, opts.MaxBackoff)
	}
	return opts, nil
}
