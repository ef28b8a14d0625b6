package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/convertease/internal/cloudmersive"
	"github.com/pdiddy/convertease/internal/logger"
	"github.com/pdiddy/convertease/internal/proxy"
	"github.com/pdiddy/convertease/internal/secrets"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion proxy",
	Long: `Serve starts the conversion proxy. It accepts base64-encoded files on
POST /convert, forwards each one to the conversion API, and returns the
converted bytes. The API key is read from the configuration, from
.secrets/cloudmersive-api-key, or from $CLOUDMERSIVE_API_KEY.

Without a key the proxy still starts, but every conversion fails with
"API key not configured".`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("formats-file", "", "YAML file replacing the built-in format tables")
	serveCmd.Flags().Float64("rate", 0, "maximum outbound requests per second (0 = unlimited)")
	_ = viper.BindPFlag("proxy.listen_addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("proxy.upstream.requests_per_second", serveCmd.Flags().Lookup("rate"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	key, source, err := secrets.APIKey(cfg.Proxy.Upstream.APIKey, secretsDir)
	if err != nil {
		return err
	}
	if key == "" {
		logger.Warn("no conversion API key configured; conversions will fail until one is set")
	} else {
		fmt.Fprintf(os.Stderr, "Using API key from %s\n", source)
	}
	cfg.Proxy.Upstream.APIKey = key

	table, err := loadTable(formatsFile(cmd, cfg.Proxy.FormatsFile))
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Proxy.ListenAddr,
		Handler:           proxy.New(table, cloudmersive.New(cfg.Proxy.Upstream), cfg.Proxy).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	fmt.Fprintf(os.Stderr, "Proxy listening on %s\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "Shutting down proxy...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
