package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Request décrit un paiement à encaisser. Receipt est le numéro de commande,
// identique d'une tentative à l'autre.
type Request struct {
	IdentityID string
	Amount     int64
	Currency   string
	Receipt    string
	Notes      map[string]string
	Prefill    Prefill
}

// Confirmation n'est retournée qu'après vérification de la signature par le serveur.
type Confirmation struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Amount         int64
	Currency       string
}

// Adapter enchaîne : disponibilité → ordre de paiement → fenêtre → vérification.
type Adapter struct {
	backend Backend
	host    HostEnvironment
	probe   Availability
	keyID   string
}

func NewAdapter(backend Backend, host HostEnvironment, probe Availability, keyID string) *Adapter {
	return &Adapter{backend: backend, host: host, probe: probe, keyID: keyID}
}

func (a *Adapter) Pay(ctx context.Context, req Request, widget Widget) (*Confirmation, error) {
	if a.probe != nil {
		if err := a.probe.Check(ctx); err != nil {
			log.Printf("❌ Passerelle indisponible: %v", err)
			if errors.Is(err, ErrGatewayUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
	}

	intent, err := a.backend.CreateIntent(ctx, IntentRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		log.Printf("❌ Création du paiement %s: %v", req.Receipt, err)
		var ice *IntentCreationError
		if errors.As(err, &ice) {
			return nil, err
		}
		return nil, &IntentCreationError{Err: err}
	}
	if intent.Amount != 0 && intent.Amount != req.Amount {
		return nil, &IntentCreationError{Err: fmt.Errorf("montant serveur %d différent de %d", intent.Amount, req.Amount)}
	}

	result, err := a.open(ctx, req, intent, widget)
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case OutcomeDismissed:
		log.Printf("ℹ️ Paiement %s annulé par l'utilisateur", req.Receipt)
		return nil, ErrCancelledByUser
	case OutcomeFailed:
		log.Printf("❌ Paiement %s refusé: %s %s", req.Receipt, result.ErrorCode, result.ErrorReason)
		return nil, &PaymentFailedError{GatewayOrderID: intent.ID, Code: result.ErrorCode, Reason: result.ErrorReason}
	case OutcomeSuccess:
	default:
		return nil, &PaymentFailedError{GatewayOrderID: intent.ID, Reason: fmt.Sprintf("issue inconnue %q", result.Outcome)}
	}

	// Un succès de la fenêtre ne vaut pas paiement : seule la vérification serveur compte
	verifyErr := func() error {
		if result.PaymentID == "" || result.Signature == "" {
			return errors.New("triplet de paiement incomplet")
		}
		if result.GatewayOrderID != intent.ID {
			return fmt.Errorf("ordre %s inattendu (attendu %s)", result.GatewayOrderID, intent.ID)
		}
		return a.backend.Verify(ctx, VerifyRequest{
			OrderID:   result.GatewayOrderID,
			PaymentID: result.PaymentID,
			Signature: result.Signature,
		})
	}()
	if verifyErr != nil {
		log.Printf("🚨 Paiement %s non vérifié (payment_id=%s): %v", req.Receipt, result.PaymentID, verifyErr)
		return nil, &VerificationError{PaymentID: result.PaymentID, GatewayOrderID: intent.ID, Err: verifyErr}
	}

	log.Printf("✅ Paiement %s vérifié (payment_id=%s)", req.Receipt, result.PaymentID)
	return &Confirmation{
		GatewayOrderID: intent.ID,
		PaymentID:      result.PaymentID,
		Signature:      result.Signature,
		Amount:         req.Amount,
		Currency:       req.Currency,
	}, nil
}

// open affiche la fenêtre dans un environnement acquis puis libéré une seule fois,
// quelle que soit l'issue.
func (a *Adapter) open(ctx context.Context, req Request, intent Intent, widget Widget) (WidgetResult, error) {
	release, err := a.host.Acquire(ctx, req.IdentityID)
	if err != nil {
		return WidgetResult{}, err
	}
	defer release()

	currency := intent.Currency
	if currency == "" {
		currency = req.Currency
	}

	return widget.Open(ctx, WidgetSession{
		IdentityID:     req.IdentityID,
		KeyID:          a.keyID,
		GatewayOrderID: intent.ID,
		Amount:         req.Amount,
		Currency:       currency,
		Receipt:        req.Receipt,
		Prefill:        req.Prefill,
	})
}
