package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/edgechat/archive"
	"github.com/gosuda/edgechat/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "edgechat",
	Short: "EdgeChat client (local browser UI, polling backend sync)",
	RunE:  runChat,
}

var (
	flagBackendURL   string
	flagToken        string
	flagUserID       int
	flagUsername     string
	flagPort         int
	flagName         string
	flagPollInterval time.Duration
	flagDataPath     string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagBackendURL, "backend-url", "http://localhost:8000/api/v1", "chat backend API root")
	flags.StringVar(&flagToken, "token", "", "auth token (skips the login screen when set with --user-id)")
	flags.IntVar(&flagUserID, "user-id", 0, "account id matching --token")
	flags.StringVar(&flagUsername, "username", "", "display name matching --token")
	flags.IntVar(&flagPort, "port", 8095, "local UI HTTP port")
	flags.StringVar(&flagName, "name", "EdgeChat", "UI display name")
	flags.DurationVar(&flagPollInterval, "poll-interval", 3*time.Second, "active-room message poll interval")
	flags.StringVar(&flagDataPath, "data-path", "", "optional directory to archive observed messages via PebbleDB")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute edgechat command")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	// Cancellation context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional: open persistent archive
	var store *archive.Store
	if flagDataPath != "" {
		s, err := archive.Open(flagDataPath)
		if err != nil {
			log.Warn().Err(err).Msg("[edgechat] open archive failed; running without one")
		} else {
			store = s
			log.Info().Str("path", flagDataPath).Msg("[edgechat] archiving observed messages")
		}
	}

	gw := gateway.NewClient(flagBackendURL, flagToken)
	a := newApp(gw, store, flagName, flagPollInterval)

	// A pre-supplied token skips the login screen entirely.
	if flagToken != "" && flagUserID != 0 {
		self := gateway.User{ID: flagUserID, Username: flagUsername}
		if err := a.startSession(ctx, self); err != nil {
			return fmt.Errorf("initial load: %w", err)
		}
		log.Info().Int("user_id", flagUserID).Msg("[edgechat] session started from flags")
	}

	handler := NewHandler(a)
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", flagPort), Handler: handler, ReadHeaderTimeout: 5 * time.Second, IdleTimeout: 60 * time.Second}
	log.Info().Msgf("[edgechat] serving UI at http://127.0.0.1:%d", flagPort)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[edgechat] local http stopped")
		}
	}()

	// Unified shutdown watcher
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("[edgechat] http server shutdown error")
		}
	}()

	// Wait for cancel, then clean up sockets and the archive
	<-ctx.Done()
	a.closeAll()
	a.wait()
	if store != nil {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("[edgechat] archive close error")
		}
	}
	log.Info().Msg("[edgechat] shutdown complete")
	return nil
}
