package projectmodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cadence/internal/codeinfo"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	m := Default()
	assert.Equal(t, 15.0, m.LengthSeconds)
	assert.Equal(t, 3, m.ComplexityGoals[codeinfo.FeatureRepeatExecution])
	assert.Len(t, m.ComplexityGoals, len(codeinfo.AllFeatures))
	assert.Equal(t, 1, m.API["makeBeat"])
	assert.Empty(t, m.Properties())
}

func TestUpdateRemove(t *testing.T) {
	t.Parallel()

	m := Default()
	require.NoError(t, m.Update(Genre, "HIP HOP"))
	require.NoError(t, m.Update(Genre, "HIP HOP"))
	require.NoError(t, m.Update(Instrument, "DRUMS"))
	require.NoError(t, m.Update(Form, "ABA"))
	assert.Equal(t, []string{"HIP HOP"}, m.Genre)
	assert.Equal(t, []Entry{
		{Property: Genre, Value: "HIP HOP"},
		{Property: Instrument, Value: "DRUMS"},
		{Property: Form, Value: "ABA"},
	}, m.Properties())
	assert.True(t, m.Has("DRUMS"))

	clone := m.Clone()
	require.NoError(t, m.Remove(Instrument, "DRUMS"))
	assert.False(t, m.Has("DRUMS"))
	assert.True(t, clone.Has("DRUMS"))

	m.Clear(Form)
	assert.Empty(t, m.Form)
	assert.Error(t, m.Update(Property(42), "x"))
}

func TestParseProperty(t *testing.T) {
	t.Parallel()

	p, err := ParseProperty("Code Structure")
	require.NoError(t, err)
	assert.Equal(t, CodeStructure, p)
	_, err = ParseProperty("tempo")
	assert.Error(t, err)

	data, err := json.Marshal(Entry{Property: Genre, Value: "POP"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"property":"genre","value":"POP"}`, string(data))
	assert.Equal(t, "Forms", Form.DropupLabel())
}

func TestUnmetGoals(t *testing.T) {
	t.Parallel()

	m := Default()
	features := codeinfo.Features{codeinfo.FeatureMakeBeat: 1, codeinfo.FeatureRepeatExecution: 2}
	unmet := m.UnmetGoals(features)
	assert.Equal(t, []codeinfo.Feature{
		codeinfo.FeatureForLoopsIterable, codeinfo.FeatureConditionals,
		codeinfo.FeatureRepeatExecution, codeinfo.FeatureConsoleInput,
	}, unmet)
}
