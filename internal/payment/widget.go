package payment

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNoPendingWidget  = errors.New("aucune fenêtre de paiement en attente")
	ErrAlreadyDelivered = errors.New("résultat de paiement déjà reçu")
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeFailed    Outcome = "failed"
)

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// WidgetSession est ce dont le navigateur a besoin pour ouvrir la fenêtre de paiement.
type WidgetSession struct {
	IdentityID     string  `json:"-"`
	KeyID          string  `json:"key"`
	GatewayOrderID string  `json:"order_id"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Receipt        string  `json:"receipt"`
	Prefill        Prefill `json:"prefill"`
}

// WidgetResult est le retour de la fenêtre : succès (triplet à vérifier), abandon ou échec.
type WidgetResult struct {
	Outcome        Outcome `json:"outcome"`
	GatewayOrderID string  `json:"razorpay_order_id,omitempty"`
	PaymentID      string  `json:"razorpay_payment_id,omitempty"`
	Signature      string  `json:"razorpay_signature,omitempty"`
	ErrorCode      string  `json:"error_code,omitempty"`
	ErrorReason    string  `json:"error_reason,omitempty"`
}

// Widget ouvre la fenêtre de paiement et bloque jusqu'à son issue.
type Widget interface {
	Open(ctx context.Context, session WidgetSession) (WidgetResult, error)
}

// RemoteWidget relaie la fenêtre ouverte dans le navigateur : la session part sur
// Sessions(), le résultat revient par Deliver. Sans réponse avant le délai, le
// paiement est considéré comme abandonné.
type RemoteWidget struct {
	timeout  time.Duration
	sessions chan WidgetSession
	results  chan WidgetResult
}

func NewRemoteWidget(timeout time.Duration) *RemoteWidget {
	return &RemoteWidget{
		timeout:  timeout,
		sessions: make(chan WidgetSession, 1),
		results:  make(chan WidgetResult, 1),
	}
}

// Sessions reçoit la session dès que la fenêtre doit être affichée.
func (w *RemoteWidget) Sessions() <-chan WidgetSession {
	return w.sessions
}

func (w *RemoteWidget) Open(ctx context.Context, session WidgetSession) (WidgetResult, error) {
	select {
	case w.sessions <- session:
	default:
		return WidgetResult{}, ErrHostBusy
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case res := <-w.results:
		return res, nil
	case <-timer.C:
		return WidgetResult{Outcome: OutcomeDismissed}, nil
	case <-ctx.Done():
		return WidgetResult{}, ctx.Err()
	}
}

// Deliver transmet le retour du navigateur ; un seul résultat est accepté.
func (w *RemoteWidget) Deliver(res WidgetResult) error {
	select {
	case w.results <- res:
		return nil
	default:
		return ErrAlreadyDelivered
	}
}

// Broker retrouve la fenêtre en attente d'une identité lors du callback.
type Broker struct {
	mu      sync.Mutex
	widgets map[string]*RemoteWidget
}

func NewBroker() *Broker {
	return &Broker{widgets: make(map[string]*RemoteWidget)}
}

// Register associe une fenêtre à l'identité ; la fonction retournée la retire.
func (b *Broker) Register(identityID string, w *RemoteWidget) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.widgets[identityID]; exists {
		return nil, ErrHostBusy
	}
	b.widgets[identityID] = w

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.widgets[identityID] == w {
			delete(b.widgets, identityID)
		}
	}, nil
}

func (b *Broker) Deliver(identityID string, res WidgetResult) error {
	b.mu.Lock()
	w, ok := b.widgets[identityID]
	b.mu.Unlock()

	if !ok {
		return ErrNoPendingWidget
	}
	return w.Deliver(res)
}
