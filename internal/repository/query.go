package repository

import (
	"context"
	"errors"
	"fmt"
)

// Response est la forme uniforme retournée par la chaîne From(...).
// Les cas attendus (introuvable, aucun résultat) passent par Error, jamais par panic.
type Response struct {
	Data  any
	Error error
}

// Chain reproduit l'API fluide from().select().eq().single() au-dessus de Repository.
// C'est un adaptateur de compatibilité ; les dépôts typés restent l'API principale.
type Chain struct {
	repo       *Repository
	collection string
	fields     []string
	query      Query
	id         *string
	err        error
}

func (r *Repository) From(collection string) *Chain {
	return &Chain{repo: r, collection: collection}
}

// Select limite les champs retournés ; sans argument, tous les champs.
func (c *Chain) Select(fields ...string) *Chain {
	c.fields = fields
	return c
}

// Eq sur "id" est routé vers une lecture directe par identifiant.
func (c *Chain) Eq(field string, value any) *Chain {
	if field == FieldID {
		id := fmt.Sprint(value)
		c.id = &id
		return c
	}
	return c.where(field, OpEq, value)
}

func (c *Chain) Neq(field string, value any) *Chain { return c.where(field, OpNeq, value) }
func (c *Chain) Gt(field string, value any) *Chain  { return c.where(field, OpGt, value) }
func (c *Chain) Gte(field string, value any) *Chain { return c.where(field, OpGte, value) }
func (c *Chain) Lt(field string, value any) *Chain  { return c.where(field, OpLt, value) }
func (c *Chain) Lte(field string, value any) *Chain { return c.where(field, OpLte, value) }
func (c *Chain) In(field string, values any) *Chain { return c.where(field, OpIn, values) }

func (c *Chain) where(field string, op Operator, value any) *Chain {
	cond := Condition{Field: field, Operator: op, Value: value}
	if err := cond.validate(); err != nil && c.err == nil {
		c.err = err
	}
	c.query.Conditions = append(c.query.Conditions, cond)
	return c
}

func (c *Chain) Order(field string, descending bool) *Chain {
	c.query.OrderBy = field
	c.query.Descending = descending
	return c
}

func (c *Chain) Limit(n int) *Chain {
	c.query.Limit = n
	return c
}

// Execute retourne tous les documents correspondants dans Response.Data ([]Document).
func (c *Chain) Execute(ctx context.Context) Response {
	docs, err := c.run(ctx)
	if err != nil {
		return Response{Error: err}
	}
	return Response{Data: docs}
}

// Single retourne exactement un document (Document) ou une erreur dans Response.Error.
func (c *Chain) Single(ctx context.Context) Response {
	docs, err := c.run(ctx)
	if err != nil {
		return Response{Error: err}
	}
	switch len(docs) {
	case 0:
		return Response{Error: ErrNotFound}
	case 1:
		return Response{Data: docs[0]}
	}
	return Response{Error: ErrMultipleRows}
}

func (c *Chain) run(ctx context.Context) ([]Document, error) {
	if c.err != nil {
		return nil, c.err
	}

	var docs []Document
	if c.id != nil {
		doc, err := c.repo.GetByID(ctx, c.collection, *c.id)
		if errors.Is(err, ErrNotFound) {
			return []Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		docs = applyQuery([]Document{doc}, c.query)
	} else {
		found, err := c.repo.Find(ctx, c.collection, c.query)
		if err != nil {
			return nil, err
		}
		docs = found
	}

	if len(c.fields) == 0 {
		return docs, nil
	}
	projected := make([]Document, 0, len(docs))
	for _, doc := range docs {
		p := Document{FieldID: doc[FieldID]}
		for _, f := range c.fields {
			if v, ok := doc[f]; ok {
				p[f] = v
			}
		}
		projected = append(projected, p)
	}
	return projected, nil
}
