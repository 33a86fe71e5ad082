package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable : script de paiement injoignable. Pas de nouvelle tentative automatique.
	ErrGatewayUnavailable = errors.New("la passerelle de paiement est indisponible, rechargez la page")
	// ErrCancelledByUser : fenêtre de paiement fermée par l'utilisateur. Ce n'est pas une erreur.
	ErrCancelledByUser = errors.New("paiement annulé")
	// ErrHostBusy : une fenêtre de paiement est déjà ouverte pour cette identité.
	ErrHostBusy = errors.New("un paiement est déjà en cours")
)

// IntentCreationError : le backend n'a pas créé l'ordre de paiement.
type IntentCreationError struct {
	Status int
	Err    error
}

func (e *IntentCreationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("création du paiement impossible (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("création du paiement impossible: %v", e.Err)
}

func (e *IntentCreationError) Unwrap() error { return e.Err }

// PaymentFailedError : la passerelle a refusé le paiement.
type PaymentFailedError struct {
	GatewayOrderID string
	Code           string
	Reason         string
}

func (e *PaymentFailedError) Error() string {
	if e.Reason != "" {
		return "paiement refusé: " + e.Reason
	}
	return "paiement refusé"
}

// VerificationError : la signature n'a pas été validée. L'argent a pu être débité,
// le client doit contacter le support avec la référence de paiement.
type VerificationError struct {
	PaymentID      string
	GatewayOrderID string
	Err            error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("paiement non vérifié, contactez le support avec la référence %s: %v", e.PaymentID, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
