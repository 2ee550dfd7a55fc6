package ice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	cloudflareTURNURL = "https://rtc.live.cloudflare.com/v1/turn/keys/%s/credentials/generate"
	fallbackSTUN      = "stun:stun.l.google.com:19302"
)

// Config lists static ICE servers and optional Cloudflare TURN credentials.
type Config struct {
	ICEServers []ServerConfig `mapstructure:"ice_servers"`
	TurnKeyID  string         `mapstructure:"turn_key_id"`
	TurnKey    string         `mapstructure:"turn_key"`
	TurnTTL    time.Duration  `mapstructure:"turn_ttl"`
}

type ServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// ICEServer represents an ICE server configuration for clients.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Provider builds the ICE server list handed to WebRTC clients. Generated
// TURN credentials are reused until shortly before they expire.
type Provider struct {
	cfg      Config
	endpoint string
	client   *http.Client
	now      func() time.Time

	mu      sync.Mutex
	turn    *ICEServer
	expires time.Time
}

func NewProvider(cfg Config) *Provider {
	if cfg.TurnTTL <= 0 {
		cfg.TurnTTL = 24 * time.Hour
	}
	l := pkglog.L()
	if cfg.TurnKeyID != "" && cfg.TurnKey != "" {
		l.Info().Str("turn_key_id", cfg.TurnKeyID).Str("turn_key", maskKey(cfg.TurnKey)).Msg("TURN configuration loaded")
	} else {
		l.Info().Msg("TURN configuration not found, serving static ICE servers only")
	}

	return &Provider{
		cfg:      cfg,
		endpoint: cloudflareTURNURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Servers returns the configured servers plus TURN when available. A STUN
// server is always present.
func (p *Provider) Servers(ctx context.Context) []ICEServer {
	servers := make([]ICEServer, 0, len(p.cfg.ICEServers)+2)
	for _, s := range p.cfg.ICEServers {
		servers = append(servers, ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	if turn := p.turnServer(ctx); turn != nil {
		servers = append(servers, *turn)
	}

	if !hasSTUN(servers) {
		servers = append([]ICEServer{{URLs: []string{fallbackSTUN}}}, servers...)
	}
	return servers
}

func (p *Provider) turnServer(ctx context.Context) *ICEServer {
	if p.cfg.TurnKeyID == "" || p.cfg.TurnKey == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.turn != nil && p.now().Before(p.expires) {
		return p.turn
	}

	turn, err := p.fetchTURN(ctx)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to get Cloudflare TURN credentials")
		return nil
	}

	// refreshed at 90% of the TTL
	p.turn = turn
	p.expires = p.now().Add(p.cfg.TurnTTL - p.cfg.TurnTTL/10)
	return turn
}

type cloudflareTURNResponse struct {
	ICEServers struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username"`
		Credential string   `json:"credential"`
	} `json:"iceServers"`
}

func (p *Provider) fetchTURN(ctx context.Context) (*ICEServer, error) {
	url := fmt.Sprintf(p.endpoint, p.cfg.TurnKeyID)
	reqBody := []byte(fmt.Sprintf(`{"ttl": %d}`, int64(p.cfg.TurnTTL.Seconds())))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.TurnKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call TURN API: %w", err)
	}
	defer resp.Body.Close()

	// Cloudflare TURN API returns 201 (Created) on success, not 200
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TURN API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var turnResp cloudflareTURNResponse
	if err := json.NewDecoder(resp.Body).Decode(&turnResp); err != nil {
		return nil, fmt.Errorf("failed to decode TURN response: %w", err)
	}
	if len(turnResp.ICEServers.URLs) == 0 {
		return nil, fmt.Errorf("TURN API returned no urls")
	}

	return &ICEServer{
		URLs:       turnResp.ICEServers.URLs,
		Username:   turnResp.ICEServers.Username,
		Credential: turnResp.ICEServers.Credential,
	}, nil
}

func hasSTUN(servers []ICEServer) bool {
	for _, s := range servers {
		for _, url := range s.URLs {
			if strings.HasPrefix(url, "stun:") || strings.HasPrefix(url, "stuns:") {
				return true
			}
		}
	}
	return false
}

// maskKey masks a key for logging purposes
func maskKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
