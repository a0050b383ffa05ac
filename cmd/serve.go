package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nelhattab/electratrack/internal/api"
	"github.com/nelhattab/electratrack/internal/session"
	"github.com/nelhattab/electratrack/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.TTL)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		var persist session.Persister
		if st != nil {
			persist = st
		}
		sessions := session.NewManager(cfg.Session.TTL, persist)
		server := api.New(cfg, sessions, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(),
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port), zap.String("store", cfg.Store.Driver))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			err := sessions.Run(gctx, cfg.Session.SweepInterval)
			if err == context.Canceled {
				return nil
			}
			return err
		})

		if st != nil {
			g.Go(func() error {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						n, err := st.DeleteExpired(gctx)
						if err != nil {
							zap.L().Warn("store sweep failed", zap.Error(err))
							continue
						}
						if n > 0 {
							zap.L().Info("store: deleted expired slots", zap.Int("count", n))
						}
					}
				}
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
