package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scaleField(id string, weight float64) *Field {
	return &Field{
		ID:       id,
		Category: "lifestyle",
		Weight:   weight,
		Kind:     KindScale,
		Rule:     RuleSimilarity,
		MinValue: 1,
		MaxValue: 5,
	}
}

func TestNewCatalog_Valid(t *testing.T) {
	catalog, err := NewCatalog(7, []*Field{
		scaleField("b.second", 1),
		scaleField("a.first", 2),
		{
			ID:       "c.choice",
			Category: "values",
			Weight:   1,
			Kind:     KindSingleChoice,
			Rule:     RuleExactMatch,
			Options:  Options{"yes", "no"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), catalog.Version())
	assert.Equal(t, 3, catalog.Len())

	// Fields walk in id order regardless of insertion order
	ids := make([]string, 0, 3)
	for _, f := range catalog.Fields() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"a.first", "b.second", "c.choice"}, ids)

	field, ok := catalog.Field("a.first")
	require.True(t, ok)
	assert.Equal(t, 2.0, field.Weight)

	_, ok = catalog.Field("missing")
	assert.False(t, ok)
}

func TestNewCatalog_Categories(t *testing.T) {
	catalog, err := NewCatalog(1, []*Field{
		scaleField("lifestyle.a", 1),
		scaleField("lifestyle.b", 1),
		{
			ID:       "values.c",
			Category: "values",
			Weight:   1,
			Kind:     KindBoolean,
			Rule:     RuleExactMatch,
		},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"lifestyle", "values"}, catalog.Categories())
	assert.Len(t, catalog.FieldsByCategory("lifestyle"), 2)
	assert.Len(t, catalog.FieldsByCategory("values"), 1)
	assert.Empty(t, catalog.FieldsByCategory("unknown"))
}

func TestNewCatalog_RejectsInvalidFields(t *testing.T) {
	cases := []struct {
		name   string
		fields []*Field
	}{
		{
			name:   "empty id",
			fields: []*Field{scaleField("", 1)},
		},
		{
			name:   "duplicate id",
			fields: []*Field{scaleField("a", 1), scaleField("a", 2)},
		},
		{
			name:   "zero weight",
			fields: []*Field{scaleField("a", 0)},
		},
		{
			name:   "negative weight",
			fields: []*Field{scaleField("a", -1)},
		},
		{
			name: "empty category",
			fields: []*Field{{
				ID: "a", Weight: 1, Kind: KindScale, Rule: RuleSimilarity,
				MinValue: 1, MaxValue: 5,
			}},
		},
		{
			name: "empty scale range",
			fields: []*Field{{
				ID: "a", Category: "c", Weight: 1, Kind: KindScale,
				Rule: RuleSimilarity, MinValue: 5, MaxValue: 5,
			}},
		},
		{
			name: "scale with exact_match rule",
			fields: []*Field{{
				ID: "a", Category: "c", Weight: 1, Kind: KindScale,
				Rule: RuleExactMatch, MinValue: 1, MaxValue: 5,
			}},
		},
		{
			name: "single choice with one option",
			fields: []*Field{{
				ID: "a", Category: "c", Weight: 1, Kind: KindSingleChoice,
				Rule: RuleExactMatch, Options: Options{"only"},
			}},
		},
		{
			name: "unknown kind",
			fields: []*Field{{
				ID: "a", Category: "c", Weight: 1, Kind: "fancy",
			}},
		},
		{
			name: "compat table on boolean field",
			fields: []*Field{{
				ID: "a", Category: "c", Weight: 1, Kind: KindBoolean,
				Rule:        RuleExactMatch,
				CompatTable: CompatTable{"x": {"x": 1}},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(1, tc.fields)
			assert.Error(t, err)
		})
	}
}

func TestNewCatalog_CompatTableValidation(t *testing.T) {
	base := func(table CompatTable) []*Field {
		return []*Field{{
			ID:          "values.religion",
			Category:    "values",
			Weight:      1,
			Kind:        KindSingleChoice,
			Rule:        RuleSimilarity,
			Options:     Options{"a", "b"},
			CompatTable: table,
		}}
	}

	t.Run("symmetric table accepted", func(t *testing.T) {
		_, err := NewCatalog(1, base(CompatTable{
			"a": {"a": 1, "b": 0.5},
			"b": {"a": 0.5, "b": 1},
		}))
		assert.NoError(t, err)
	})

	t.Run("asymmetric table rejected", func(t *testing.T) {
		_, err := NewCatalog(1, base(CompatTable{
			"a": {"b": 0.5},
			"b": {"a": 0.4},
		}))
		assert.Error(t, err)
	})

	t.Run("missing mirror rejected", func(t *testing.T) {
		_, err := NewCatalog(1, base(CompatTable{
			"a": {"b": 0.5},
		}))
		assert.Error(t, err)
	})

	t.Run("value above one rejected", func(t *testing.T) {
		_, err := NewCatalog(1, base(CompatTable{
			"a": {"b": 1.5},
			"b": {"a": 1.5},
		}))
		assert.Error(t, err)
	})

	t.Run("undeclared option rejected", func(t *testing.T) {
		_, err := NewCatalog(1, base(CompatTable{
			"a": {"z": 0.5},
			"z": {"a": 0.5},
		}))
		assert.Error(t, err)
	})
}

func TestHolder_Replace(t *testing.T) {
	first, err := NewCatalog(1, []*Field{scaleField("a", 1)})
	require.NoError(t, err)
	second, err := NewCatalog(2, []*Field{scaleField("a", 1), scaleField("b", 1)})
	require.NoError(t, err)

	holder := NewHolder(first)
	assert.Equal(t, int64(1), holder.Current().Version())

	holder.Replace(second)
	assert.Equal(t, int64(2), holder.Current().Version())
	assert.Equal(t, 2, holder.Current().Len())
}

func TestValidateAnswer(t *testing.T) {
	scale := scaleField("a", 1)
	boolean := &Field{ID: "b", Category: "c", Weight: 1, Kind: KindBoolean, Rule: RuleExactMatch}
	choice := &Field{
		ID: "c", Category: "c", Weight: 1, Kind: KindSingleChoice,
		Rule: RuleExactMatch, Options: Options{"never", "often"},
	}

	cases := []struct {
		name    string
		field   *Field
		value   string
		wantErr bool
	}{
		{"scale in range", scale, "3", false},
		{"scale at lower bound", scale, "1", false},
		{"scale at upper bound", scale, "5", false},
		{"scale fractional", scale, "2.5", false},
		{"scale below range", scale, "0", true},
		{"scale above range", scale, "6", true},
		{"scale not numeric", scale, "three", true},
		{"boolean true", boolean, "true", false},
		{"boolean false", boolean, "false", false},
		{"boolean junk", boolean, "yes", true},
		{"choice declared", choice, "never", false},
		{"choice undeclared", choice, "sometimes", true},
		{"choice empty", choice, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAnswer(tc.field, tc.value)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAnswer)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
