package uploads

import (
	"context"
	"sync"
	"time"

	"github.com/slskd/slskd/pkg/metrics"
)

// replenishInterval is the fixed window a SpeedLimit (bytes/sec) is
// expressed against. Options only name a rate, not a window, so the
// bucket's Interval is always one second; Resize only ever changes
// Capacity in response to reconfiguration.
const replenishInterval = time.Second

// GroupRate is the Governor's view of one group's configured rate, the
// rate-relevant slice of a Groups.*.Upload options block.
type GroupRate struct {
	Name       string
	SpeedLimit int64 // bytes/sec; <= 0 means unlimited (no bucket)
}

// GovernorOptions is the Governor's Reconfigure input: one GroupRate per
// configured group, including GroupDefault.
type GovernorOptions struct {
	Groups []GroupRate
	Hash   uint64
}

// Grant is the opaque handle Governor.Acquire returns alongside the byte
// count. Callers that later call Return must pass the same Grant back, so
// the unused portion is credited to the exact bucket instance acquired
// from — not whatever bucket the group name maps to by the time Return
// runs, which may have been replaced by a Reconfigure in between.
type Grant struct {
	bucket *TokenBucket
	group  string
}

// Governor routes byte-grant requests to a TokenBucket selected by the
// uploading user's group, with a Default fallback for unknown groups.
type Governor struct {
	mu          sync.RWMutex
	userService UserService
	buckets     map[string]*TokenBucket
	hash        uint64
	metrics     metrics.UploadMetrics
}

// NewGovernor creates a Governor with no buckets configured; call
// Reconfigure before first use.
func NewGovernor(userService UserService) *Governor {
	return &Governor{
		userService: userService,
		buckets:     make(map[string]*TokenBucket),
	}
}

// SetMetrics wires in an UploadMetrics sink. A nil sink (the default)
// disables reporting at zero overhead.
func (g *Governor) SetMetrics(m metrics.UploadMetrics) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics = m
}

// Acquire resolves username's group via the UserService, selects that
// group's bucket (or Default if the group has no bucket of its own),
// and delegates to TokenBucket.Acquire. When neither that group nor
// Default has a bucket, requested is granted immediately in full.
func (g *Governor) Acquire(ctx context.Context, username string, requested int64) (Grant, int64, error) {
	group, bucket := g.resolveBucket(username)
	if bucket == nil {
		metrics.RecordGrant(g.metricsSink(), group, requested, requested)
		return Grant{group: group}, requested, nil
	}
	n, err := bucket.Acquire(ctx, requested)
	metrics.RecordGrant(g.metricsSink(), group, requested, n)
	return Grant{bucket: bucket, group: group}, n, err
}

// Return credits the unused portion of a grant (granted - actual, when
// positive) back to the exact bucket instance it was acquired from. If
// that bucket has since been replaced by a Reconfigure, it is no longer
// read from by anyone and the bytes are effectively — and per design,
// deliberately — discarded.
func (g *Governor) Return(grant Grant, granted, actual int64) {
	unused := granted - actual
	if unused <= 0 {
		return
	}
	if grant.bucket != nil {
		grant.bucket.Return(unused)
	}
	metrics.RecordReturn(g.metricsSink(), grant.group, unused)
}

func (g *Governor) metricsSink() metrics.UploadMetrics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metrics
}

func (g *Governor) resolveBucket(username string) (group string, bucket *TokenBucket) {
	group = g.userService.GetGroup(username)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if b, ok := g.buckets[group]; ok {
		return group, b
	}
	return GroupDefault, g.buckets[GroupDefault]
}

// Reconfigure rebuilds the bucket map from opts: a group that keeps a
// positive SpeedLimit keeps its bucket, resized in place; a new limited
// group gets a fresh bucket; buckets of groups that are gone or no longer
// limited are closed. It is a no-op if opts.Hash is non-zero and equals the
// last applied hash, per §5's "Options: read-mostly" note. A dropped
// bucket is Closed immediately, which cancels any Acquire currently
// blocked on it with context.Canceled rather than letting it drain — this
// avoids leaking its replenish goroutine. An outstanding Grant for that
// bucket is still safe to Return against afterward: Return only writes to
// the bucket's balance, which nothing reads again.
func (g *Governor) Reconfigure(opts GovernorOptions) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if opts.Hash != 0 && opts.Hash == g.hash {
		return
	}
	g.hash = opts.Hash

	fresh := make(map[string]*TokenBucket, len(opts.Groups))
	for _, rate := range opts.Groups {
		if rate.SpeedLimit <= 0 {
			continue
		}
		if existing, ok := g.buckets[rate.Name]; ok {
			// Same group name survives: resize in place so in-flight
			// acquirers on this exact bucket observe the new capacity on
			// their next replenish tick instead of being cut off.
			existing.Resize(rate.SpeedLimit, replenishInterval)
			fresh[rate.Name] = existing
			continue
		}
		fresh[rate.Name] = NewTokenBucket(rate.SpeedLimit, replenishInterval)
	}

	old := g.buckets
	g.buckets = fresh

	for name, bucket := range old {
		if fresh[name] == bucket {
			continue
		}
		bucket.Close()
	}
}

// Close stops every bucket's replenish loop. Intended for shutdown.
func (g *Governor) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.buckets {
		b.Close()
	}
	g.buckets = make(map[string]*TokenBucket)
}
