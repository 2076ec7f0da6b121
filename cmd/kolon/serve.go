package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/kolon/pkg/api"
	grpcapi "github.com/lemonberrylabs/kolon/pkg/api/grpc"
	"github.com/lemonberrylabs/kolon/pkg/loader"
	"github.com/lemonberrylabs/kolon/pkg/store"
	"github.com/lemonberrylabs/kolon/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and gRPC tokenize APIs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serveCmd.Flags().Bool("preload", false, "Compile every template under the first include path at startup")
	serveCmd.Flags().Bool("request-log", false, "Log every HTTP request")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = fmt.Sprintf("%d", v)
	}
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		cfg.GRPCPort = fmt.Sprintf("%d", v)
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetBool("preload"); v {
		cfg.Preload = true
	}
	requestLog, _ := cmd.Flags().GetBool("request-log")

	syn := newSyntax(cfg)
	s := store.New()
	l, err := loader.New(cfg.IncludePaths, s, syn)
	if err != nil {
		return err
	}

	if cfg.Preload {
		log.Printf("Preloading templates from %s", l.IncludePaths()[0])
		if _, err := l.Preload(); err != nil {
			log.Printf("Warning: failed to preload templates: %v", err)
		}
	}

	server := api.New(l, s, syn, requestLog)

	// Register the web UI
	ui := web.New(s, l, syn)
	ui.Register(server.App())

	// Start gRPC server
	grpcServer := grpcapi.New(l, syn)
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr())
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down kolon...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Kolon listening on %s (include paths=%v, tags=%s %s, code line=%s)",
		cfg.Addr(), l.IncludePaths(), cfg.Syntax.OpenTag, cfg.Syntax.CloseTag, cfg.Syntax.CodeLineDelimiter)
	return server.Listen(cfg.Addr())
}
