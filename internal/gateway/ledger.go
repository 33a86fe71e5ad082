package gateway

import (
	"context"
	"errors"
	"time"

	"cedra_storefront/internal/repository"
)

const AttemptsCollection = "payment_attempts"

type AttemptStatus string

const (
	AttemptCreated            AttemptStatus = "created"
	AttemptVerified           AttemptStatus = "verified"
	AttemptVerificationFailed AttemptStatus = "verification_failed"
)

// Attempt trace chaque ordre de paiement créé. Un ordre resté « created » alors
// que la passerelle a encaissé est à rapprocher manuellement par le support.
type Attempt struct {
	ID         string        `json:"id"`
	IdentityID string        `json:"identity_id"`
	Receipt    string        `json:"receipt"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Provider   string        `json:"provider"`
	Status     AttemptStatus `json:"status"`
	PaymentID  string        `json:"payment_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Ledger stocke les tentatives ; l'identifiant du document est celui de l'ordre de paiement.
type Ledger struct {
	docs *repository.Repository
}

func NewLedger(docs *repository.Repository) *Ledger {
	return &Ledger{docs: docs}
}

func (l *Ledger) Record(ctx context.Context, a Attempt) error {
	a.Status = AttemptCreated
	doc, err := repository.Encode(a)
	if err != nil {
		return err
	}
	delete(doc, repository.FieldCreatedAt)
	delete(doc, repository.FieldUpdatedAt)

	_, err = l.docs.Add(ctx, AttemptsCollection, doc, repository.WithID(a.ID))
	if errors.Is(err, repository.ErrDuplicate) {
		// Ordre renvoyé depuis le cache des reçus : déjà tracé
		return nil
	}
	return err
}

func (l *Ledger) Get(ctx context.Context, orderID string) (Attempt, error) {
	doc, err := l.docs.GetByID(ctx, AttemptsCollection, orderID)
	if err != nil {
		return Attempt{}, err
	}
	var a Attempt
	if err := repository.Decode(doc, &a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (l *Ledger) Mark(ctx context.Context, orderID string, status AttemptStatus, paymentID string) error {
	_, err := l.docs.Update(ctx, AttemptsCollection, orderID, repository.Document{
		"status":     string(status),
		"payment_id": paymentID,
	})
	return err
}

// Pending liste les tentatives jamais vérifiées, plus anciennes que olderThan.
func (l *Ledger) Pending(ctx context.Context, olderThan time.Time) ([]Attempt, error) {
	docs, err := l.docs.Find(ctx, AttemptsCollection, repository.Query{
		Conditions: []repository.Condition{
			repository.Where("status", string(AttemptCreated)),
			{Field: repository.FieldCreatedAt, Operator: repository.OpLt, Value: olderThan.UTC().Format(time.RFC3339Nano)},
		},
		OrderBy: repository.FieldCreatedAt,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Attempt, 0, len(docs))
	for _, doc := range docs {
		var a Attempt
		if err := repository.Decode(doc, &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
