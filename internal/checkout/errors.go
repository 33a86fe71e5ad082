package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated  = errors.New("connexion requise pour commander")
	ErrPaymentInProgress = errors.New("un paiement est déjà en cours")
	ErrWrongStep         = errors.New("action impossible à cette étape")
	ErrEmptyOrder        = errors.New("aucun article à commander")
	ErrNonPositiveTotal  = errors.New("le total de la commande doit être positif")
)

// PersistenceError : le paiement est confirmé mais la commande n'a pas été enregistrée.
// La référence de paiement doit être montrée au client.
type PersistenceError struct {
	OrderNumber      string
	PaymentReference string
	Err              error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("la commande %s n'a pas pu être enregistrée, contactez le support avec la référence de paiement %s",
		e.OrderNumber, e.PaymentReference)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
