package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jeremyforan/go-design-patterns/internal/version"
)

var (
	dir      string
	logLevel string
)

func init() {
	flag.StringVar(&dir, "dir", ".", "project directory")
	flag.StringVar(&logLevel, "log_level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})), nil
}

func main() {
	flag.Parse()

	logger, err := newLogger(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	v, err := version.Describe(context.Background(), version.WithDir(dir), version.WithLogger(logger))
	if err != nil {
		logger.Error("unable to determine version", "dir", dir, "err", err)
		os.Exit(1)
	}
	fmt.Println(v)
}
