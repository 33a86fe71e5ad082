package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("document introuvable")
	ErrDuplicate       = errors.New("document ou valeur unique déjà existant")
	ErrInvalidOperator = errors.New("opérateur de condition inconnu")
	ErrMultipleRows    = errors.New("plusieurs documents correspondent")
)

// Champs techniques posés par le dépôt sur chaque écriture.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Document est un objet JSON stocké dans une collection.
type Document map[string]any

// ID retourne l'identifiant du document, ou "" s'il est absent.
func (d Document) ID() string {
	if v, ok := d[FieldID].(string); ok {
		return v
	}
	return ""
}

func (d Document) clone() Document {
	out, err := normalize(d)
	if err != nil {
		return Document{}
	}
	m, _ := out.(map[string]any)
	return Document(m)
}

// Operator est un opérateur de comparaison utilisable dans une Condition.
type Operator string

const (
	OpEq            Operator = "=="
	OpNeq           Operator = "!="
	OpLt            Operator = "<"
	OpLte           Operator = "<="
	OpGt            Operator = ">"
	OpGte           Operator = ">="
	OpIn            Operator = "in"
	OpArrayContains Operator = "array-contains"
	// OpEqualFold : égalité de chaînes sans tenir compte de la casse ni des espaces autour.
	OpEqualFold Operator = "=~"
)

// Condition filtre les documents sur un champ. Field accepte un chemin pointé ("address.city").
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Where construit une condition d'égalité.
func Where(field string, value any) Condition {
	return Condition{Field: field, Operator: OpEq, Value: value}
}

func (c Condition) validate() error {
	switch c.Operator {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpIn, OpArrayContains, OpEqualFold:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
}

// matches évalue la condition sur un document déjà normalisé.
func (c Condition) matches(doc Document) bool {
	got, present := lookup(doc, c.Field)
	want, err := normalize(c.Value)
	if err != nil {
		return false
	}

	switch c.Operator {
	case OpEq:
		return present && reflect.DeepEqual(got, want)
	case OpNeq:
		return !present || !reflect.DeepEqual(got, want)
	case OpEqualFold:
		gs, ok1 := got.(string)
		ws, ok2 := want.(string)
		return present && ok1 && ok2 && strings.EqualFold(strings.TrimSpace(gs), strings.TrimSpace(ws))
	case OpLt, OpLte, OpGt, OpGte:
		if !present {
			return false
		}
		cmp, ok := compare(got, want)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpLt:
			return cmp < 0
		case OpLte:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case OpIn:
		candidates, ok := want.([]any)
		if !ok || !present {
			return false
		}
		for _, candidate := range candidates {
			if reflect.DeepEqual(got, candidate) {
				return true
			}
		}
		return false
	case OpArrayContains:
		values, ok := got.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if reflect.DeepEqual(v, want) {
				return true
			}
		}
		return false
	}
	return false
}

func lookup(doc Document, path string) (any, bool) {
	var current any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// compare ordonne deux valeurs JSON de même nature. Les chaînes au format
// RFC3339 sont comparées comme des dates.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		at, errA := time.Parse(time.RFC3339Nano, av)
		bt, errB := time.Parse(time.RFC3339Nano, bv)
		if errA == nil && errB == nil {
			return at.Compare(bt), true
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av == bv {
			return 0, ok
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// normalize ramène une valeur Go à sa représentation JSON générique
// (float64, string, bool, nil, []any, map[string]any).
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode convertit une structure en Document via ses tags JSON.
func Encode(v any) (Document, error) {
	out, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("encodage document: %w", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("encodage document: %T n'est pas un objet", v)
	}
	return Document(m), nil
}

// Decode remplit une structure à partir d'un Document.
func Decode(doc Document, target any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("décodage document: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("décodage document: %w", err)
	}
	return nil
}
