package probe

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/exmdbctl/internal/exmdb"
	"github.com/danmuck/exmdbctl/internal/exmdb/requests"
	"github.com/danmuck/exmdbctl/internal/observability"
	"github.com/danmuck/exmdbctl/internal/protocol/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoStores        = errors.New("probe: at least one store required")
	ErrInvalidInterval = errors.New("probe: invalid interval")
)

type Config struct {
	Endpoint exmdb.Endpoint
	Stores   []string
	Interval time.Duration
	// MaxConnectAttempts bounds consecutive failed connects; 0 retries forever.
	MaxConnectAttempts int
	Transport          transport.Config
}

func DefaultConfig() Config {
	return Config{
		Interval:  30 * time.Second,
		Transport: transport.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Endpoint.Validate(); err != nil {
		return err
	}
	if len(c.Stores) == 0 {
		return ErrNoStores
	}
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// StoreStatus is the outcome of the latest ping of one store.
type StoreStatus struct {
	Store     string    `json:"store"`
	Up        bool      `json:"up"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMS float64   `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

type Prober struct {
	cfg Config
	rng *rand.Rand

	mu        sync.RWMutex
	statuses  map[string]StoreStatus
	connected bool
	rounds    uint64
}

func New(cfg Config) (*Prober, error) {
	cfg.Transport = cfg.Transport.WithDefaults()
	cfg.Stores = normalizeStores(cfg.Stores)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Prober{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		statuses: make(map[string]StoreStatus, len(cfg.Stores)),
	}, nil
}

// Run connects, probes every interval and reconnects after transport
// failures until ctx is done. Consecutive lost sessions back off like failed
// dials; the count resets once a session completes a full round. It returns
// an error only when connect attempts are exhausted.
func (p *Prober) Run(ctx context.Context) error {
	losses := 0
	for {
		client, err := p.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		before := p.completedRounds()
		err = p.session(ctx, client)
		_ = client.Close()
		p.setConnected(false)
		if ctx.Err() != nil {
			log.Info().Msg("probe shutdown")
			return nil
		}

		if p.completedRounds() > before {
			losses = 0
		}
		losses++
		log.Warn().Err(err).Int("losses", losses).Msg("probe session lost, reconnecting")
		if err := p.sleepBackoff(ctx, losses); err != nil {
			return nil
		}
	}
}

func (p *Prober) completedRounds() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rounds
}

func (p *Prober) connect(ctx context.Context) (*exmdb.Client, error) {
	attempt := 0
	for {
		attempt++
		client, err := exmdb.Dial(ctx, p.cfg.Transport, p.cfg.Endpoint)
		if err == nil {
			p.setConnected(true)
			return client, nil
		}
		log.Warn().
			Int("attempt", attempt).
			Str("host", p.cfg.Endpoint.Host).
			Err(err).
			Msg("probe connect failed")
		if p.cfg.MaxConnectAttempts > 0 && attempt >= p.cfg.MaxConnectAttempts {
			return nil, err
		}
		if err := p.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (p *Prober) session(ctx context.Context, client *exmdb.Client) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := p.ProbeOnce(ctx, client); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProbeOnce pings every configured store over client. Server-reported
// failures mark the store down; a transport failure aborts the round and is
// returned so the caller can reconnect.
func (p *Prober) ProbeOnce(ctx context.Context, client *exmdb.Client) error {
	for _, store := range p.cfg.Stores {
		start := time.Now()
		_, err := exmdb.Send(ctx, client, requests.PingStoreRequest{Dir: store})
		st := StoreStatus{
			Store:     store,
			Up:        err == nil,
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			CheckedAt: time.Now(),
		}
		if err != nil {
			st.Error = err.Error()
			if code, ok := exmdb.StatusOf(err); ok {
				st.Status = code.String()
			}
		}
		p.record(st)
		if err != nil && !client.Connected() {
			return err
		}
	}
	p.mu.Lock()
	p.rounds++
	p.mu.Unlock()
	return nil
}

// Snapshot returns the latest status of every probed store, ordered by store.
func (p *Prober) Snapshot() []StoreStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]StoreStatus, 0, len(p.statuses))
	for _, st := range p.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Store < out[j].Store
	})
	return out
}

// Ready reports a live connection with every store up after at least one
// full round.
func (p *Prober) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.connected || p.rounds == 0 {
		return false
	}
	for _, store := range p.cfg.Stores {
		if !p.statuses[store].Up {
			return false
		}
	}
	return true
}

func (p *Prober) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Prober) record(st StoreStatus) {
	p.mu.Lock()
	p.statuses[st.Store] = st
	p.mu.Unlock()
	observability.RecordStoreProbe(st.Store, st.Up)
	if !st.Up {
		log.Warn().Str("store", st.Store).Str("status", st.Status).Str("err", st.Error).Msg("store down")
	}
}

func (p *Prober) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
	observability.SetProbeConnected(v)
}

func (p *Prober) sleepBackoff(ctx context.Context, attempt int) error {
	delay := transport.NextBackoffDelay(p.cfg.Transport.Backoff, attempt, p.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeStores(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, store := range in {
		v := strings.TrimSpace(store)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
