// Command mailbox-server runs the HTTP message relay that DKG, Refresh,
// and DSG sessions poll against when not wired up with an in-process
// MemoryHub.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/mailbox"
)

var (
	listenAddr string
	ttl        time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "mailbox-server",
	Short: "Content-addressed message relay for threshold protocol sessions",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	rootCmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "message time-to-live before cleanup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("mailbox-server exited", "error", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := slog.Default()
	store := mailbox.NewStore(ttl)
	server := mailbox.NewServer(store, log)

	stop := make(chan struct{})
	go server.RunCleanupLoop(60*time.Second, stop)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mailbox-server listening", "addr", listenAddr, "ttl", ttl)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(stop)
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-sigCh:
		close(stop)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}
