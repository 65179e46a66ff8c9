package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/netopshq/netbox-mcp/pkg/netbox"
)

const (
	// DefaultChoicesPageSize is the page size used when walking a
	// reference collection.
	DefaultChoicesPageSize = 100

	// DefaultChoicesMaxResults caps how large a reference collection may
	// be before Choices refuses it outright. Oversized collections are an
	// explicit error, never a silent truncation.
	DefaultChoicesMaxResults = 5000
)

// Resolver exposes a script's declared variables and enumerates the valid
// choice set for ObjectVar reference endpoints. It also keeps the session
// ledger behind the resolution policy: an ObjectVar value counts as
// resolved only if it matches an id fetched via Choices for that endpoint
// in this session.
type Resolver struct {
	client     *netbox.Client
	catalog    *Catalog
	pageSize   int
	maxResults int
	sessionID  string

	mu      sync.RWMutex
	fetched map[string]map[int64]struct{}
}

// NewResolver creates a resolver bound to the given catalog. Zero page
// size or max selects the defaults.
func NewResolver(client *netbox.Client, catalog *Catalog, pageSize, maxResults int) *Resolver {
	if pageSize <= 0 {
		pageSize = DefaultChoicesPageSize
	}
	if maxResults <= 0 {
		maxResults = DefaultChoicesMaxResults
	}
	r := &Resolver{
		client:     client,
		catalog:    catalog,
		pageSize:   pageSize,
		maxResults: maxResults,
		sessionID:  uuid.NewString(),
		fetched:    make(map[string]map[int64]struct{}),
	}
	log.Debug().Str("session", r.sessionID).Msg("resolution session started")
	return r
}

// Variables returns the declared variables of one script, or
// ScriptNotFoundError if the catalog does not know the id.
func (r *Resolver) Variables(ctx context.Context, scriptID int64) ([]ScriptVariable, error) {
	desc, err := r.catalog.Get(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	return desc.Variables, nil
}

// Choices enumerates the full {id, label} choice set of a reference
// endpoint, walking every page of the remote collection. The returned set
// has no duplicates and no omissions. A successful fetch records the
// endpoint's id set in the session ledger, replacing any earlier fetch.
func (r *Resolver) Choices(ctx context.Context, endpoint string) ([]ChoiceOption, error) {
	endpoint = strings.Trim(endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("choices: empty reference endpoint")
	}

	raws, err := r.client.ListAll(ctx, endpoint, url.Values{"brief": {"true"}}, r.pageSize, r.maxResults)
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}

	seen := make(map[int64]struct{}, len(raws))
	options := make([]ChoiceOption, 0, len(raws))
	for _, raw := range raws {
		var obj struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Display string `json:"display"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			log.Warn().Str("endpoint", endpoint).Err(err).Msg("skipping undecodable choice object")
			continue
		}
		if _, dup := seen[obj.ID]; dup {
			continue
		}
		seen[obj.ID] = struct{}{}

		label := obj.Name
		if label == "" {
			label = obj.Display
		}
		if label == "" {
			label = strconv.FormatInt(obj.ID, 10)
		}
		options = append(options, ChoiceOption{ID: obj.ID, Label: label})
	}

	r.mu.Lock()
	r.fetched[endpoint] = seen
	r.mu.Unlock()

	log.Debug().Str("session", r.sessionID).Str("endpoint", endpoint).Int("choices", len(options)).Msg("choice set fetched")
	return options, nil
}

// Resolved reports whether id was returned by a Choices fetch for
// endpoint in this session.
func (r *Resolver) Resolved(endpoint string, id int64) bool {
	endpoint = strings.Trim(endpoint, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.fetched[endpoint]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}
