package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/analyzer"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/cert"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/llm"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/proxy"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/web"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd создает команду serve
func NewServeCmd() *cobra.Command {
	opts := &configOverrides{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intercepting proxy with the analysis API",
		Long: `Serve starts an intercepting HTTP/HTTPS proxy that records traffic and a web API
that plays the role of the "Gemini-1.5 Analyze" context menu: select captured
exchanges by id and POST them to /api/analyze.

Proxied traffic is never analyzed on its own. Only a manual trigger sends
responses to the model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	addConfigFlags(cmd, opts)
	return cmd
}

func runServe(cmd *cobra.Command, opts *configOverrides) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProvider(ctx, cfg.LLM, nil)
	if err != nil {
		return err
	}

	results, err := storage.NewResultStore(cfg.Storage.ResultsDB)
	if err != nil {
		return err
	}
	defer results.Close()

	exchanges := storage.NewExchangeStore(cfg.Proxy.HistoryLimit)
	hub := websocket.NewHub()

	a := analyzer.New(
		provider,
		analyzer.NewConsoleOutput(),
		analyzer.WithResultStore(results),
		analyzer.WithBroadcaster(hub),
		analyzer.WithMaxBodyBytes(cfg.LLM.MaxBodyBytes),
	)
	a.Announce()

	certManager, err := cert.NewCertManager(cfg.Cert.CertFile)
	if err != nil {
		return err
	}

	proxyServer := proxy.NewServer(cfg, exchanges, certManager)
	proxyServer.SetListener(a)
	proxyServer.SetBroadcaster(hub)

	webServer := web.NewServer(cfg.Web, exchanges, results, a, hub)

	log.Info().Msgf("🤖 Model: %s/%s", provider.GetName(), provider.GetModel())
	log.Info().Msgf("🔐 CA certificate: %s", proxyServer.GetCAPath())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(proxyServer.Start)
	g.Go(webServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("🛑 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		proxyErr := proxyServer.Stop(shutdownCtx)
		webErr := webServer.Stop(shutdownCtx)
		if proxyErr != nil {
			return proxyErr
		}
		return webErr
	})

	return g.Wait()
}
