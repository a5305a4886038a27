package box

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/modforge/container/internal/bootstrap"
	"github.com/modforge/container/internal/descriptor"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/resilience"
	"go.uber.org/zap"
)

// RemoteProvider talks to an external box daemon over HTTP. The daemon
// owns classpath isolation and dependency resolution; this adapter only
// speaks its JSON surface.
type RemoteProvider struct {
	base    string
	client  *resty.Client
	breaker *resilience.Breaker
	log     *logging.Logger
}

// RemoteConfig configures the daemon connection.
type RemoteConfig struct {
	Address string
	Retries int
}

// NewRemoteProvider creates a provider bound to the daemon at cfg.Address.
func NewRemoteProvider(cfg RemoteConfig, log *logging.Logger) *RemoteProvider {
	client := resty.New().
		SetBaseURL(cfg.Address).
		SetTimeout(60 * time.Second).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond)

	// Correlation id per daemon call so slow deploys can be traced
	// through daemon logs. Retries of the same call keep the same id.
	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get("X-Request-ID") == "" {
			r.SetHeader("X-Request-ID", uuid.NewString())
		}
		return nil
	})

	return &RemoteProvider{
		base:   cfg.Address,
		client: client,
		breaker: resilience.New("boxd", resilience.Settings{
			FailureThreshold: 5,
			Cooldown:         15 * time.Second,
		}),
		log: log,
	}
}

type createRequest struct {
	Location string   `json:"location"`
	Profiles []string `json:"profiles"`
	Raw      bool     `json:"raw"`
	Options  Options  `json:"options"`
	Systems  []string `json:"systems"`
}

type createResponse struct {
	ID string `json:"id"`
}

// Create asks the daemon to construct a box for the descriptor.
func (p *RemoteProvider) Create(ctx context.Context, desc *descriptor.Descriptor, opts Options, systems bootstrap.Systems) (Box, error) {
	req := createRequest{
		Location: desc.Location,
		Profiles: desc.Profiles,
		Raw:      desc.Raw,
		Options:  opts,
		Systems:  systemIDs(systems),
	}

	var created createResponse
	err := p.breaker.Do(func() error {
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&created).
			Post("/boxes")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("box daemon: %s: %s", resp.Status(), resp.String())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create box for %s: %w", desc.Location, err)
	}

	p.log.Info("box created",
		zap.String("box", created.ID),
		zap.String("location", desc.Location))
	return &remoteBox{id: created.ID, provider: p}, nil
}

// remoteBox is a handle to one daemon-hosted execution context.
type remoteBox struct {
	id       string
	provider *RemoteProvider
	released sync.Once
}

func (b *remoteBox) ID() string { return b.id }

type callRequest struct {
	Capability string                 `json:"capability"`
	Config     map[string]interface{} `json:"config,omitempty"`
	Systems    []string               `json:"systems,omitempty"`
	StartValue interface{}            `json:"start_value,omitempty"`
}

type callResponse struct {
	Result interface{} `json:"result"`
}

func (b *remoteBox) CallStart(ctx context.Context, capability string, rootConfig map[string]interface{}, systems bootstrap.Systems) (interface{}, error) {
	req := callRequest{
		Capability: capability,
		Config:     rootConfig,
		Systems:    systemIDs(systems),
	}

	var result callResponse
	err := b.provider.breaker.Do(func() error {
		resp, err := b.provider.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			Post("/boxes/" + b.id + "/start")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("box daemon: %s: %s", resp.Status(), resp.String())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("call %s in box %s: %w", capability, b.id, err)
	}
	return result.Result, nil
}

func (b *remoteBox) CallStop(ctx context.Context, capability string, startResult interface{}) error {
	req := callRequest{Capability: capability, StartValue: startResult}

	err := b.provider.breaker.Do(func() error {
		resp, err := b.provider.client.R().
			SetContext(ctx).
			SetBody(req).
			Post("/boxes/" + b.id + "/stop")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("box daemon: %s: %s", resp.Status(), resp.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("call %s in box %s: %w", capability, b.id, err)
	}
	return nil
}

func (b *remoteBox) Release() {
	b.released.Do(func() {
		resp, err := b.provider.client.R().Delete("/boxes/" + b.id)
		if err != nil {
			b.provider.log.Warn("box release failed",
				zap.String("box", b.id), zap.Error(err))
			return
		}
		// A daemon that already dropped the box is fine.
		if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
			b.provider.log.Warn("box release rejected",
				zap.String("box", b.id), zap.String("status", resp.Status()))
		}
	})
}

type manifestResponse struct {
	Entries map[string]string `json:"entries"`
}

func (b *remoteBox) ManifestEntries(ctx context.Context) ([]ManifestEntry, error) {
	var manifest manifestResponse
	resp, err := b.provider.client.R().
		SetContext(ctx).
		SetResult(&manifest).
		Get("/boxes/" + b.id + "/manifest")
	if err != nil {
		return nil, fmt.Errorf("manifest for box %s: %w", b.id, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("manifest for box %s: %s", b.id, resp.Status())
	}

	entries := make([]ManifestEntry, 0, len(manifest.Entries))
	for k, v := range manifest.Entries {
		entries = append(entries, ManifestEntry{Key: k, Value: v})
	}
	return entries, nil
}

// Handler proxies module HTTP traffic to the daemon-side handler.
func (b *remoteBox) Handler() http.Handler {
	target, err := url.Parse(b.provider.base + "/boxes/" + b.id + "/http")
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "module handler unavailable", http.StatusBadGateway)
		})
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	return proxy
}

func systemIDs(systems bootstrap.Systems) []string {
	ids := make([]string, 0, len(systems))
	for id := range systems {
		ids = append(ids, id)
	}
	return ids
}
