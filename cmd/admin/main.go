// Package main provides giveandget-admin, the operator CLI for issuing
// tokens and loading organizations.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/giveandget/giveandget/internal/cache"
	"github.com/giveandget/giveandget/internal/database"
	"github.com/giveandget/giveandget/internal/organization"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// storeOpener returns the repository commands write to and a function that
// releases it.
type storeOpener func(ctx context.Context) (organization.Repository, func(), error)

// app holds what commands share.
type app struct {
	out       io.Writer
	logger    zerolog.Logger
	openStore storeOpener
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Timestamp().
		Str("service", "giveandget-admin").
		Logger()

	a := &app{
		out:       os.Stdout,
		logger:    logger,
		openStore: openPostgresStore(logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "giveandget-admin",
		Short:         "Administer the Give and Get service",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(a.out)

	root.AddCommand(newTokenCmd(a))
	root.AddCommand(newOrgsCmd(a))
	return root
}

// openPostgresStore connects to the database configured in the environment.
// When REDIS_ADDR is set, writes also evict the API's cached copies.
func openPostgresStore(logger zerolog.Logger) storeOpener {
	return func(ctx context.Context) (organization.Repository, func(), error) {
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		var repo organization.Repository = organization.NewPostgresRepository(pool)
		closers := []func(){pool.Close}

		cacheConfig := cache.ConfigFromEnv()
		if cacheConfig.Enabled() {
			client, err := cache.Connect(ctx, cacheConfig)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = client.Close() })
			repo = organization.NewCachedRepository(organization.CachedRepositoryConfig{
				Next:   repo,
				Client: client,
				TTL:    cacheConfig.TTL,
				Logger: logger,
			})
		}

		return repo, func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}, nil
	}
}
