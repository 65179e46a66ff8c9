package scripts

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
)

const (
	scriptsEndpoint = "extras/scripts"

	// DefaultCatalogTTL bounds how long a fetched script list is served
	// without a refresh.
	DefaultCatalogTTL = 5 * time.Minute
)

// Catalog fetches and caches the remote script list. Reads are served from
// an immutable snapshot that is swapped atomically on refresh, so readers
// observe either the old or the fully refreshed catalog, never a partial
// one. A stale cache is never served past its TTL: if the refresh fails,
// the failure propagates.
type Catalog struct {
	client *netbox.Client
	ttl    time.Duration

	refreshMu sync.Mutex
	snap      atomic.Pointer[catalogSnapshot]
}

type catalogSnapshot struct {
	fetchedAt time.Time
	scripts   []ScriptDescriptor
	byID      map[int64]*ScriptDescriptor
}

// NewCatalog creates a catalog over the given client. ttl <= 0 selects
// DefaultCatalogTTL.
func NewCatalog(client *netbox.Client, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{client: client, ttl: ttl}
}

// List returns all known script descriptors, refreshing the cache if the
// TTL has lapsed. The result is a copy; mutating it cannot touch the
// cached snapshot.
func (c *Catalog) List(ctx context.Context) ([]ScriptDescriptor, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(snap.scripts)
	for i := range out {
		out[i].Variables = slices.Clone(out[i].Variables)
	}
	return out, nil
}

// Get returns the descriptor for one script id, or ScriptNotFoundError.
// The returned descriptor is a copy; mutating it cannot touch the cached
// snapshot.
func (c *Catalog) Get(ctx context.Context, scriptID int64) (*ScriptDescriptor, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if desc, ok := snap.byID[scriptID]; ok {
		out := *desc
		out.Variables = slices.Clone(desc.Variables)
		return &out, nil
	}
	return nil, &ScriptNotFoundError{ScriptID: scriptID}
}

// Invalidate drops the cached snapshot; the next read refetches.
func (c *Catalog) Invalidate() {
	c.snap.Store(nil)
}

func (c *Catalog) snapshot(ctx context.Context) (*catalogSnapshot, error) {
	if snap := c.snap.Load(); snap != nil && time.Since(snap.fetchedAt) < c.ttl {
		return snap, nil
	}

	// Serialize refreshes; a concurrent reader that lost the race reuses
	// the snapshot the winner produced.
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if snap := c.snap.Load(); snap != nil && time.Since(snap.fetchedAt) < c.ttl {
		return snap, nil
	}
	return c.refresh(ctx)
}

func (c *Catalog) refresh(ctx context.Context) (*catalogSnapshot, error) {
	raws, err := c.client.ListAll(ctx, scriptsEndpoint, url.Values{}, 0, 0)
	if err != nil {
		return nil, &UpstreamError{Endpoint: scriptsEndpoint, Err: err}
	}

	snap := &catalogSnapshot{
		fetchedAt: time.Now(),
		byID:      make(map[int64]*ScriptDescriptor, len(raws)),
	}
	for _, raw := range raws {
		var rs rawScript
		if err := json.Unmarshal(raw, &rs); err != nil {
			log.Warn().Err(err).Msg("skipping undecodable script entry")
			continue
		}
		snap.scripts = append(snap.scripts, rs.descriptor())
	}
	for i := range snap.scripts {
		snap.byID[snap.scripts[i].ID] = &snap.scripts[i]
	}

	c.snap.Store(snap)
	log.Debug().Int("scripts", len(snap.scripts)).Msg("script catalog refreshed")
	return snap, nil
}
