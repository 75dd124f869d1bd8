package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/api"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/config"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP viewer (or the MCP server on stdio with --mcp)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if mcpMode {
			return serveMCP(cmd.Context(), a)
		}
		return serveHTTP(cmd.Context(), a)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and viewer status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "serve the MCP protocol on stdin/stdout instead of HTTP")
}

func serveMCP(ctx context.Context, a *app) error {
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Catalogs: a.catalogs,
		Analyses: a.analyses,
		Session:  a.session,
		Store:    a.store,
		Logger:   a.logger,
	}, version)

	slog.Info("MCP server started (stdio transport)")
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, a *app) error {
	handler := api.NewViewerHandler(api.ViewerDeps{
		Catalogs:       a.catalogs,
		Analyses:       a.analyses,
		Session:        a.session,
		Store:          a.store,
		AllowedOrigins: a.cfg.Origins(),
		Logger:         a.logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if a.cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, a.cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSuccess("problems viewer listening on http://%s", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Viewer", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Viewer", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Viewer", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Catalog service", "%s%s", cfg.Catalog.BaseURL, cfg.Catalog.Path)
	printStatus("Analysis service", "%s%s", cfg.Analysis.BaseURL, cfg.Analysis.Path)
	if cfg.Service.APIKey == "" {
		printStatus("API key", "not set")
	} else {
		printStatus("API key", "set")
	}
	if session.Default(newTokenStore()).CurrentToken() == "" {
		printStatus("Session token", "not set")
	} else {
		printStatus("Session token", "set")
	}
	if cfg.History.Enabled {
		printStatus("History", "%s", cfg.Storage.DataDir)
	} else {
		printStatus("History", "disabled")
	}
	return nil
}
