package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/logging"
)

// Source supplies the raw registry document bytes. Implementations should be
// cheap to call repeatedly; the provider decides when to re-read.
type Source interface {
	Load() ([]byte, error)
}

// FileSource reads the registry document from a file path on every load.
type FileSource string

// Load reads the backing file.
func (f FileSource) Load() ([]byte, error) { return os.ReadFile(string(f)) }

// BytesSource serves a fixed in-memory document. Useful for tests and
// embedded seed registries.
type BytesSource []byte

// Load returns the embedded document.
func (b BytesSource) Load() ([]byte, error) { return b, nil }

// Options configures a Provider.
type Options struct {
	// TTL bounds how long parsed definitions are served before the source
	// is re-read. Zero disables time-based refresh (explicit Reload only).
	TTL time.Duration

	// Logger receives refresh and parse diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Provider is a document-backed core.Registry. It is safe for concurrent
// use; reads are lock-free once the cache is warm except for the TTL check.
// Returned definitions must be treated as read-only.
type Provider struct {
	source Source
	ttl    time.Duration
	logger logging.Logger

	mu       sync.RWMutex
	chains   map[string]*core.ChainDefinition
	agents   map[string]*core.AgentDefinition
	loadedAt time.Time
}

// New constructs a Provider over the given source. The initial load is lazy:
// the first accessor triggers it.
func New(source Source, optFns ...func(o *Options)) *Provider {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{source: source, ttl: opts.TTL, logger: opts.Logger}
}

// Chain returns the definition for name or core.ErrUnknownChain.
func (p *Provider) Chain(name string) (*core.ChainDefinition, error) {
	if err := p.ensureFresh(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.chains[name]
	if !ok {
		return nil, fmt.Errorf("chain %q: %w", name, core.ErrUnknownChain)
	}
	return c, nil
}

// Chains lists all chain definitions sorted by name.
func (p *Provider) Chains() ([]*core.ChainDefinition, error) {
	if err := p.ensureFresh(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*core.ChainDefinition, 0, len(p.chains))
	for _, c := range p.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Agent returns the definition for name or core.ErrUnknownAgent.
func (p *Provider) Agent(name string) (*core.AgentDefinition, error) {
	if err := p.ensureFresh(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent %q: %w", name, core.ErrUnknownAgent)
	}
	return a, nil
}

// Agents lists all agent definitions sorted by name.
func (p *Provider) Agents() ([]*core.AgentDefinition, error) {
	if err := p.ensureFresh(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*core.AgentDefinition, 0, len(p.agents))
	for _, a := range p.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Reload drops the cache and re-reads the source immediately.
func (p *Provider) Reload() error {
	return p.refresh()
}

// ensureFresh loads the document on first access and re-loads it once the
// TTL has lapsed. A failed refresh keeps serving the previous cache.
func (p *Provider) ensureFresh() error {
	p.mu.RLock()
	warm := !p.loadedAt.IsZero()
	stale := p.ttl > 0 && time.Since(p.loadedAt) > p.ttl
	p.mu.RUnlock()

	if !warm {
		return p.refresh()
	}
	if stale {
		if err := p.refresh(); err != nil {
			p.logger.Warn("registry refresh failed, serving stale cache", "error", err)
		}
	}
	return nil
}

func (p *Provider) refresh() error {
	raw, err := p.source.Load()
	if err != nil {
		return fmt.Errorf("load registry source: %w", err)
	}
	chains, agents, err := Parse(raw)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.chains = chains
	p.agents = agents
	p.loadedAt = time.Now()
	p.mu.Unlock()

	p.logger.Debug("registry refreshed", "chains", len(chains), "agents", len(agents))
	return nil
}
