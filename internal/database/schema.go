package database

import (
	"fmt"
	"log"

	"github.com/gocql/gocql"
)

// Tables du magasin de documents. Une ligne par document, corps JSON.
var documentSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection text,
		id text,
		body text,
		PRIMARY KEY ((collection), id)
	)`,
	// Réservations de valeurs uniques (ex: order_number)
	`CREATE TABLE IF NOT EXISTS document_keys (
		collection text,
		field text,
		value text,
		id text,
		PRIMARY KEY ((collection, field), value)
	)`,
}

// EnsureDocumentSchema crée les tables si elles n'existent pas encore.
func EnsureDocumentSchema(session *gocql.Session) error {
	for _, stmt := range documentSchema {
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("création schéma documents: %w", err)
		}
	}
	log.Println("✅ Schéma documents prêt")
	return nil
}
