package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
)

// SessionProvider retourne une session valide (ex: ScyllaManager.GetSession).
type SessionProvider func() (*gocql.Session, error)

// ScyllaBackend stocke chaque document en JSON dans la table documents.
// Les écritures conditionnelles utilisent des LWT (IF NOT EXISTS / IF EXISTS).
type ScyllaBackend struct {
	session SessionProvider
}

func NewScyllaBackend(session SessionProvider) *ScyllaBackend {
	return &ScyllaBackend{session: session}
}

func (s *ScyllaBackend) Get(ctx context.Context, collection, id string) (Document, error) {
	session, err := s.session()
	if err != nil {
		return nil, err
	}

	var body string
	err = session.Query(`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).
		WithContext(ctx).Scan(&body)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture %s/%s: %w", collection, id, err)
	}
	return unmarshalBody(body)
}

func (s *ScyllaBackend) Scan(ctx context.Context, collection string) ([]Document, error) {
	session, err := s.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT body FROM documents WHERE collection = ?`, collection).WithContext(ctx).Iter()

	var (
		docs []Document
		body string
	)
	for iter.Scan(&body) {
		doc, err := unmarshalBody(body)
		if err != nil {
			// Un document illisible ne bloque pas la lecture de la collection
			continue
		}
		docs = append(docs, doc)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return docs, nil
}

func (s *ScyllaBackend) Insert(ctx context.Context, collection string, doc Document) error {
	return s.cas(ctx, ErrDuplicate,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?) IF NOT EXISTS`,
		func() ([]any, error) {
			body, err := json.Marshal(doc)
			return []any{collection, doc.ID(), string(body)}, err
		})
}

func (s *ScyllaBackend) Replace(ctx context.Context, collection string, doc Document) error {
	return s.cas(ctx, ErrNotFound,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ? IF EXISTS`,
		func() ([]any, error) {
			body, err := json.Marshal(doc)
			return []any{string(body), collection, doc.ID()}, err
		})
}

func (s *ScyllaBackend) Delete(ctx context.Context, collection, id string) error {
	return s.cas(ctx, ErrNotFound,
		`DELETE FROM documents WHERE collection = ? AND id = ? IF EXISTS`,
		func() ([]any, error) { return []any{collection, id}, nil })
}

func (s *ScyllaBackend) Reserve(ctx context.Context, collection, field, value, id string) error {
	return s.cas(ctx, ErrDuplicate,
		`INSERT INTO document_keys (collection, field, value, id) VALUES (?, ?, ?, ?) IF NOT EXISTS`,
		func() ([]any, error) { return []any{collection, field, value, id}, nil })
}

func (s *ScyllaBackend) Release(ctx context.Context, collection, field, value string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	return session.Query(`DELETE FROM document_keys WHERE collection = ? AND field = ? AND value = ?`,
		collection, field, value).WithContext(ctx).Exec()
}

// cas exécute une requête conditionnelle et retourne notApplied si Scylla la refuse.
func (s *ScyllaBackend) cas(ctx context.Context, notApplied error, stmt string, args func() ([]any, error)) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	values, err := args()
	if err != nil {
		return fmt.Errorf("sérialisation document: %w", err)
	}

	applied, err := session.Query(stmt, values...).WithContext(ctx).MapScanCAS(map[string]any{})
	if err != nil {
		return fmt.Errorf("écriture conditionnelle: %w", err)
	}
	if !applied {
		return notApplied
	}
	return nil
}

func unmarshalBody(body string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("document JSON invalide: %w", err)
	}
	return doc, nil
}
