package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	CreateOrderPath = "/api/create-razorpay-order"
	VerifyPath      = "/api/verify-razorpay-signature"
)

var errInvalidSignature = errors.New("signature refusée par le serveur")

type IntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Intent est l'ordre de paiement créé côté serveur ; son montant fait foi.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Backend regroupe les deux endpoints de confiance.
type Backend interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	Verify(ctx context.Context, req VerifyRequest) error
}

type bearerKey struct{}

// WithBearerToken transmet le jeton de l'utilisateur aux appels du backend.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BackendClient appelle les endpoints du backend en HTTP, comme le ferait le navigateur.
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[Intent]
}

func NewBackendClient(baseURL string, httpClient *http.Client) *BackendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	breaker := gobreaker.NewCircuitBreaker[Intent](gobreaker.Settings{
		Name:        "create-razorpay-order",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("⚠️ Disjoncteur %s: %s → %s", name, from, to)
		},
	})

	return &BackendClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		breaker:    breaker,
	}
}

// breakerSuccess : un refus 4xx concerne une requête précise, pas la santé du backend.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var ice *IntentCreationError
	return errors.As(err, &ice) && ice.Status >= 400 && ice.Status < 500
}

// CreateIntent : réponse non-2xx ou sans order.id = échec définitif, jamais de boucle de réessai.
func (c *BackendClient) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	intent, err := c.breaker.Execute(func() (Intent, error) {
		var out struct {
			Order Intent `json:"order"`
		}
		status, err := c.post(ctx, CreateOrderPath, req, &out)
		if err != nil {
			return Intent{}, &IntentCreationError{Status: status, Err: err}
		}
		if out.Order.ID == "" {
			return Intent{}, &IntentCreationError{Status: status, Err: errors.New("order.id manquant")}
		}
		return out.Order, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Intent{}, &IntentCreationError{Err: err}
	}
	return intent, err
}

// Verify n'autorise la commande que sur une réponse 2xx avec valid == true.
func (c *BackendClient) Verify(ctx context.Context, req VerifyRequest) error {
	var out struct {
		Valid bool `json:"valid"`
	}
	if _, err := c.post(ctx, VerifyPath, req, &out); err != nil {
		return err
	}
	if !out.Valid {
		return errInvalidSignature
	}
	return nil
}

func (c *BackendClient) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("sérialisation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token, ok := ctx.Value(bearerKey{}).(string); ok && token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("appel %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("lecture %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%s a répondu %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("réponse %s illisible: %w", path, err)
	}
	return resp.StatusCode, nil
}
