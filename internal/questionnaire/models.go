package questionnaire

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnswerKind describes the value domain of a questionnaire field
type AnswerKind string

const (
	KindScale        AnswerKind = "scale"
	KindSingleChoice AnswerKind = "single_choice"
	KindBoolean      AnswerKind = "boolean"
)

// ComparisonRule describes how two answers to the same field are compared
type ComparisonRule string

const (
	RuleSimilarity ComparisonRule = "similarity"
	RuleExactMatch ComparisonRule = "exact_match"
)

// Options is the declared choice set for single_choice fields, stored as JSONB
type Options []string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

func (o *Options) Scan(src interface{}) error {
	if src == nil {
		*o = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("options: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, o)
}

// CompatTable maps pairs of choice values to a similarity in [0,1].
// Lookup is symmetric: Table[a][b] and Table[b][a] must agree.
type CompatTable map[string]map[string]float64

func (t CompatTable) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

func (t *CompatTable) Scan(src interface{}) error {
	if src == nil {
		*t = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("compat table: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, t)
}

// Lookup returns the declared similarity for a pair of values
func (t CompatTable) Lookup(a, b string) (float64, bool) {
	if row, ok := t[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	return 0, false
}

// Field is a single questionnaire question. Fields are immutable once
// referenced by a response; schema evolution creates new fields.
type Field struct {
	ID          string         `json:"id" db:"id"`
	Category    string         `json:"category" db:"category"`
	Label       string         `json:"label" db:"label"`
	Weight      float64        `json:"weight" db:"weight"`
	Kind        AnswerKind     `json:"answer_kind" db:"answer_kind"`
	Rule        ComparisonRule `json:"comparison_rule" db:"comparison_rule"`
	MinValue    float64        `json:"min_value" db:"min_value"`
	MaxValue    float64        `json:"max_value" db:"max_value"`
	Options     Options        `json:"options,omitempty" db:"options"`
	CompatTable CompatTable    `json:"compat_table,omitempty" db:"compat_table"`
	DealBreaker bool           `json:"deal_breaker" db:"deal_breaker"`
	Position    int            `json:"position" db:"position"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// Response is one user's answer to one field. Values are stored as text
// and validated against the field's answer kind at write time.
type Response struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	FieldID   string    `json:"field_id" db:"field_id"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AnswerSet is a user's answers keyed by field id
type AnswerSet map[string]string
