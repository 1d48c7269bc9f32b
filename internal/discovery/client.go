package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://mixer.com/api/v1"

// ErrNoHosts — сервис не вернул ни одного адреса.
var ErrNoHosts = errors.New("discovery: no hosts found")

type Config struct {
	// BaseURL — корень REST API; по умолчанию официальный сервис.
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	// ClientID уходит в заголовок Client-ID (если задан).
	ClientID string        `json:"client_id" mapstructure:"client_id"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Client ходит в REST API сервиса за адресами интерактивных хостов.
// Снимок кэшируется и переиспользуется при 304 Not Modified.
type Client struct {
	http     *http.Client
	base     string
	clientID string
	log      zerolog.Logger

	mu        sync.RWMutex
	lastHosts []string // последний удачный снимок
	running   bool
	stopCh    chan struct{}

	etag string // для If-None-Match
}

type host struct {
	Address string `json:"address"`
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		base:     cfg.BaseURL,
		clientID: cfg.ClientID,
		log:      log.With().Str("comp", "discovery").Logger(),
	}
}

// Hosts возвращает адреса ws(s):// хостов в порядке предпочтения сервиса.
func (c *Client) Hosts(ctx context.Context) ([]string, error) {
	return c.fetchHosts(ctx)
}

// Endpoints — адаптер под источник адресов игрового клиента.
func (c *Client) Endpoints(ctx context.Context) ([]string, error) {
	return c.Hosts(ctx)
}

// Cached возвращает последний удачный снимок (может быть пустым).
func (c *Client) Cached() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]string, len(c.lastHosts))
	copy(cp, c.lastHosts)
	return cp
}

// fetchHosts — текущий список хостов. Использует ETag для экономии:
// на 304 отдаёт предыдущий снимок.
func (c *Client) fetchHosts(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/interactive/hosts", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set("Client-ID", c.clientID)
	}

	c.mu.RLock()
	if c.etag != "" {
		req.Header.Set("If-None-Match", c.etag)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 304 — ничего не изменилось, отдаём предыдущий снимок
	if resp.StatusCode == http.StatusNotModified {
		c.log.Debug().Msg("hosts not modified")
		hosts := c.Cached()
		if len(hosts) == 0 {
			return nil, ErrNoHosts
		}
		return hosts, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("discovery: hosts request returned %s", resp.Status)
	}

	var list []host
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(list))
	for _, h := range list {
		if h.Address != "" {
			hosts = append(hosts, h.Address)
		}
	}
	if len(hosts) == 0 {
		return nil, ErrNoHosts
	}

	// ETag запоминаем только вместе со снимком, на который он указывает;
	// иначе следующий 304 отдал бы пустой кэш
	c.mu.Lock()
	c.lastHosts = hosts
	if et := resp.Header.Get("ETag"); et != "" {
		c.etag = et
	}
	c.mu.Unlock()

	c.log.Debug().Strs("hosts", hosts).Msg("hosts refreshed")
	return hosts, nil
}
