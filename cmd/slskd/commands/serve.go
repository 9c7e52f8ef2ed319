package commands

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slskd/slskd/internal/logger"
	"github.com/slskd/slskd/pkg/config"
	"github.com/slskd/slskd/pkg/metrics"
	"github.com/slskd/slskd/pkg/uploads"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload pipeline until interrupted",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, scheduler, resolver := wireManager(cfg)

	logger.InfoCtx(ctx, "reconciling hanging transfers from a prior run")
	if err := manager.Reconcile(ctx); err != nil {
		return err
	}

	manager.Run(ctx)
	defer manager.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	// The periodic tick lives inside Scheduler.Run; this goroutine just
	// keeps the errgroup alive until shutdown.
	group.Go(func() error {
		<-groupCtx.Done()
		return nil
	})

	// Simulates the peer-presence subscription spec.md §4.4 says also
	// triggers Schedule(): every few seconds, nudge the scheduler as if a
	// peer's online/offline state changed.
	group.Go(func() error {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				scheduler.OnPeerStateChanged(groupCtx)
			}
		}
	})

	logger.InfoCtx(ctx, "slskd upload pipeline running, press ctrl-c to stop")

	if err := enqueueDemoUploads(ctx, manager, resolver); err != nil {
		logger.WarnCtx(ctx, "demo upload seeding failed", logger.Err(err))
	}

	<-ctx.Done()
	logger.InfoCtx(context.Background(), "shutdown signal received, draining in-flight uploads")

	return group.Wait()
}

// demoResolver resolves every (username, filename) pair to the size it was
// last registered with, since the real share scanner is out of scope.
type demoResolver struct {
	mu    sync.RWMutex
	sizes map[string]int64
}

func newDemoResolver() *demoResolver {
	return &demoResolver{sizes: make(map[string]int64)}
}

func (r *demoResolver) register(username, filename string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes[username+"\x00"+filename] = size
}

func (r *demoResolver) sizeOf(username, filename string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	size, ok := r.sizes[username+"\x00"+filename]
	if !ok {
		return 0, fmt.Errorf("no demo file registered for %s/%s", username, filename)
	}
	return size, nil
}

func (r *demoResolver) Resolve(username, filename string) (string, int64, bool) {
	size, err := r.sizeOf(username, filename)
	if err != nil {
		return "", 0, false
	}
	return "/virtual/" + username + "/" + filename, size, true
}

func wireManager(cfg *config.Options) (*uploads.Manager, *uploads.Scheduler, *demoResolver) {
	userService := uploads.NewStaticUserService()
	resolver := newDemoResolver()

	store := uploads.NewMemoryTransferStore()
	peer := uploads.NewFakePeerClient(resolver.sizeOf)
	queue := uploads.NewQueue(userService)
	governor := uploads.NewGovernor(userService)
	scheduler := uploads.NewScheduler(queue, governor, store, peer, userService)

	queue.Reconfigure(cfg.ToQueueConfig())
	governor.Reconfigure(cfg.ToGovernorOptions())
	scheduler.SetGlobalSlots(cfg.Global.Upload.Slots)

	manager := uploads.NewManager(queue, governor, scheduler, store, resolver)

	if sink := metrics.NewUploadMetrics(); sink != nil {
		manager.SetMetrics(sink)
	}

	return manager, scheduler, resolver
}

// enqueueDemoUploads seeds a handful of synthetic transfers so a freshly
// started daemon has visible activity; it is the reference entrypoint's
// stand-in for an HTTP "enqueue" controller, which is out of scope.
func enqueueDemoUploads(ctx context.Context, manager *uploads.Manager, resolver *demoResolver) error {
	for _, username := range []string{"alice", "bob", "carol"} {
		filename := "share/demo-file.bin"
		size := int64(256*1024 + rand.Intn(512*1024))
		resolver.register(username, filename, size)
		if err := manager.Enqueue(ctx, username, filename); err != nil {
			return err
		}
	}
	return nil
}
