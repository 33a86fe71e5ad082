package payment

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Availability vérifie que la passerelle peut être affichée.
type Availability interface {
	Check(ctx context.Context) error
}

// ScriptProbe fait un HEAD sur le script de paiement. Un succès est gardé en cache.
type ScriptProbe struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration

	mu     sync.Mutex
	okTill time.Time
}

func NewScriptProbe(url string, httpClient *http.Client) *ScriptProbe {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &ScriptProbe{url: url, httpClient: httpClient, ttl: 5 * time.Minute}
}

func (p *ScriptProbe) Check(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Now().Before(p.okTill) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s a répondu %d", ErrGatewayUnavailable, p.url, resp.StatusCode)
	}
	p.okTill = time.Now().Add(p.ttl)
	return nil
}
