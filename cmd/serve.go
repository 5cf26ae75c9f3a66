package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	httpctx "github.com/dtroode/memberpass/internal/api/http/context"
	"github.com/dtroode/memberpass/internal/api/http/router"
	httpServer "github.com/dtroode/memberpass/internal/api/http/server"
	"github.com/dtroode/memberpass/internal/metrics"
	"github.com/dtroode/memberpass/internal/model"
	"github.com/dtroode/memberpass/internal/server"
	"github.com/dtroode/memberpass/internal/service"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve card, photo and login endpoints plus /healthz and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (c *cli) serve(ctx context.Context, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	conn, err := c.openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	registry, err := c.newRegistry(conn, m)
	if err != nil {
		return err
	}
	tokens, err := c.newTokens()
	if err != nil {
		return err
	}
	photos, backend, err := c.newPhotos(ctx, tokens, m)
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := c.newLimiter(ctx)
	if err != nil {
		return err
	}
	defer closeLimiter()

	cards := service.NewCards(registry, tokens, limiter, m, c.logger)
	sender := newWriterSender(out, c.cfg.HTTP.PublicURL)

	r := router.New(cards, photos, sender,
		map[string]model.HealthChecker{"registry": conn, "photos": backend},
		reg, httpctx.NewManager(), c.logger).TrustProxy(c.cfg.HTTP.TrustProxy)
	srv := httpServer.NewHTTPServer(r.Register(), c.cfg.HTTP.Addr)

	sl := server.NewSecurityLayer(c.cfg.HTTP)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		c.logger.Info("Starting server on", "address", s.Address(), "https", c.cfg.HTTP.EnableHTTPS)
		if err := s.Start(sl); err != nil {
			c.logger.Error("failed to start server", "error", err)
		}
	}(srv)

	logAppVersion(out)

	<-ctx.Done()
	c.logger.Info("received interruption signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		c.logger.Error("error during server shutdown", "error", err, "address", srv.Address())
	}

	wg.Wait()
	c.logger.Info("shutdown complete")
	return nil
}

// writerSender prints magic links to a writer in place of a mail
// transport.
type writerSender struct {
	mu      sync.Mutex
	w       io.Writer
	baseURL string
}

func newWriterSender(w io.Writer, baseURL string) *writerSender {
	return &writerSender{w: w, baseURL: baseURL}
}

func (s *writerSender) SendMagicLink(_ context.Context, link model.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.w, "magic link for %s: %s\n", link.Identity.Email, s.linkURL(link.Token))
	return err
}

func (s *writerSender) linkURL(token string) string {
	return s.baseURL + "/login/magic/" + url.PathEscape(token)
}
