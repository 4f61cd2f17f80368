package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vtdsapp/internal/handler"
	"vtdsapp/internal/hub"
	"vtdsapp/internal/service"
	"vtdsapp/internal/verify"
)

var (
	statusAddr   string
	statusNoPoll bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Serve the status API",
	Long: `Status starts an HTTP server exposing the topology, node deployment
state, verification runs and the reachability policy, plus a live event
stream over SSE. Unless disabled, a background poller re-verifies the
cluster on the configured interval.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", ":8080", "HTTP listen address")
	statusCmd.Flags().BoolVar(&statusNoPoll, "no-poll", false, "disable periodic background verification")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	log.Printf("Starting vtdsapp status server on %s...", statusAddr)

	// Fan application events out to SSE clients
	sseHub := hub.New()
	go sseHub.Run()

	eventCh := make(chan service.Event, 100)
	e.bus.Subscribe(eventCh)
	go func() {
		for event := range eventCh {
			sseHub.Broadcast(event)
		}
	}()

	verifier := verify.New(e.app.Topology(), e.app.Cluster(), e.repo, e.bus, verify.Config{
		ProbeTimeout:  e.cfg.ProbeTimeout(),
		MaxConcurrent: e.cfg.Behavior.MaxConcurrentProbes,
		FSMPort:       e.cfg.Services.FSMPort,
		SCSPort:       e.cfg.Services.SCSPort,
	})

	statusHandler := handler.NewStatusHandler(e.repo, e.app.Topology())
	statusHandler.SetVerifier(verifier)

	mux := http.NewServeMux()
	statusHandler.Routes(mux)
	mux.Handle("GET /events", sseHub)

	server := &http.Server{
		Addr: statusAddr,
		Handler: handler.Chain(mux,
			handler.Recover,
			handler.CORS,
			handler.Logger,
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	var poller *verify.Poller
	if !statusNoPoll {
		poller = verify.NewPoller(verifier, e.cfg.VerifyInterval())
		poller.Start(cmd.Context())
	}

	go func() {
		log.Printf("Status server listening on %s", statusAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down status server...")
	if poller != nil {
		poller.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Status server stopped")
	return nil
}
