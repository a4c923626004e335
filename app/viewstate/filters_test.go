package viewstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmpsc/spa/app/analytics"
)

var testColumns = []analytics.ColumnDescriptor{
	{Name: "Curso", UniqueValuesCount: 2, SampleValues: []string{"ADS", "GRH"}},
	{Name: "Idade", IsNumeric: true, UniqueValuesCount: 30, SampleValues: []string{"18", "19"}},
	{Name: "Município de origem", UniqueValuesCount: 41, SampleValues: []string{"Palhoça"}},
	{Name: "Turno", UniqueValuesCount: 3, SampleValues: []string{"Matutino", "Noturno", "Vespertino"}},
}

func TestBuildFilterGroups(t *testing.T) {
	groups := BuildFilterGroups(testColumns, 40)
	require.Len(t, groups, 2)
	assert.Equal(t, "Curso", groups[0].Column)
	assert.Equal(t, "Turno", groups[1].Column)
	require.Len(t, groups[1].Options, 3)
	for _, opt := range groups[1].Options {
		assert.Equal(t, "Turno", opt.Column)
	}
	assert.Equal(t, "cb_Curso_ADS", groups[0].Options[0].Key)

	t.Run("Ceiling is inclusive", func(t *testing.T) {
		groups := BuildFilterGroups(testColumns, 41)
		assert.Len(t, groups, 3)
	})

	t.Run("Colliding sanitized names stay distinct", func(t *testing.T) {
		groups := BuildFilterGroups([]analytics.ColumnDescriptor{
			{Name: "a b", UniqueValuesCount: 1, SampleValues: []string{"x"}},
			{Name: "a_b", UniqueValuesCount: 1, SampleValues: []string{"x"}},
		}, 40)
		require.Len(t, groups, 2)
		assert.NotEqual(t, groups[0].DOMID, groups[1].DOMID)
		assert.NotEqual(t, groups[0].Options[0].Key, groups[1].Options[0].Key)

		sel := CollectFilters(groups, []string{groups[1].Options[0].Key})
		assert.Equal(t, analytics.FilterSelection{"a_b": {"x"}}, sel)
	})
}

func TestCollectFilters(t *testing.T) {
	groups := BuildFilterGroups(testColumns, 40)
	curso := groups[0].Options
	turno := groups[1].Options

	tests := []struct {
		name    string
		checked []string
		want    analytics.FilterSelection
	}{
		{"Nothing ticked", nil, analytics.FilterSelection{}},
		{"One value", []string{curso[0].Key}, analytics.FilterSelection{"Curso": {"ADS"}}},
		{
			"Order of keys does not matter",
			[]string{turno[2].Key, curso[1].Key, turno[0].Key},
			analytics.FilterSelection{"Curso": {"GRH"}, "Turno": {"Matutino", "Vespertino"}},
		},
		{
			"Same keys reversed",
			[]string{turno[0].Key, curso[1].Key, turno[2].Key},
			analytics.FilterSelection{"Curso": {"GRH"}, "Turno": {"Matutino", "Vespertino"}},
		},
		{"Unknown keys are ignored", []string{"cb_Nope_x", curso[0].Key}, analytics.FilterSelection{"Curso": {"ADS"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollectFilters(groups, tt.checked))
		})
	}
}
