package scripts

import (
	"context"
	"time"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
)

// Config tunes the engine's caching and paging behaviour. The zero value
// selects sensible defaults everywhere.
type Config struct {
	CatalogTTL        time.Duration
	ChoicesPageSize   int
	ChoicesMaxResults int
	JobsDefaultLimit  int
}

// Engine bundles the pipeline stages behind one constructor. Each stage is
// independently invocable and side-effect-free except Submit and the
// remote writes it triggers.
type Engine struct {
	Catalog   *Catalog
	Resolver  *Resolver
	Submitter *Submitter
	Tracker   *Tracker
}

// NewEngine wires the stages over one NetBox client.
func NewEngine(client *netbox.Client, cfg Config) *Engine {
	catalog := NewCatalog(client, cfg.CatalogTTL)
	resolver := NewResolver(client, catalog, cfg.ChoicesPageSize, cfg.ChoicesMaxResults)
	return &Engine{
		Catalog:   catalog,
		Resolver:  resolver,
		Submitter: NewSubmitter(client, catalog, resolver),
		Tracker:   NewTracker(client, cfg.JobsDefaultLimit),
	}
}

// Find ranks catalog entries against a free-text query.
func (e *Engine) Find(ctx context.Context, query string, topK int) ([]Match, error) {
	catalog, err := e.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(catalog, query, topK), nil
}
