package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addTemplate = &KernelTemplate{
	Name:  "add",
	Entry: "addKernel",
	Source: `
@kernel void addKernel(const TX *X, TX *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(GROUP_SIZE, @outer, @inner)) {
		if (i < n) {
			Z[i] = EXPR;
		}
	}
}
`,
	Placeholders: []string{"TX", "GROUP_SIZE", "EXPR", "OPTIONAL_PRAGMA"},
}

func TestInstantiate_ReplacesEveryOccurrence(t *testing.T) {
	inst, err := Instantiate(addTemplate, SubstitutionMap{
		"TX":         "float",
		"GROUP_SIZE": "128",
		"EXPR":       "X[i] + 1.0f",
	})
	require.NoError(t, err)

	assert.NotContains(t, inst.Source, "TX")
	assert.NotContains(t, inst.Source, "GROUP_SIZE")
	assert.NotContains(t, inst.Source, "EXPR")
	assert.Contains(t, inst.Source, "const float *X")
	assert.Contains(t, inst.Source, "@tile(128,")
	assert.Contains(t, inst.Source, "Z[i] = X[i] + 1.0f;")
	assert.Equal(t, "addKernel", inst.Entry)
}

func TestInstantiate_UndeclaredKeyFails(t *testing.T) {
	_, err := Instantiate(addTemplate, SubstitutionMap{"BOGUS": "1"})
	require.Error(t, err)

	var terr *TemplateError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "BOGUS", terr.Key)
}

func TestInstantiate_OptionalPlaceholderMayBeAbsent(t *testing.T) {
	// OPTIONAL_PRAGMA never occurs in the source; substituting it is a
	// no-op, not an error.
	inst, err := Instantiate(addTemplate, SubstitutionMap{
		"OPTIONAL_PRAGMA": "#pragma unroll",
		"EXPR":            "X[i]",
	})
	require.NoError(t, err)
	assert.NotContains(t, inst.Source, "#pragma unroll")
}

func TestInstantiate_SinglePass(t *testing.T) {
	// A replacement fragment that spells another placeholder must not be
	// substituted again.
	inst, err := Instantiate(addTemplate, SubstitutionMap{
		"EXPR": "TX_marker",
		"TX":   "float",
	})
	require.NoError(t, err)
	assert.Contains(t, inst.Source, "Z[i] = TX_marker;")
}

func TestInstantiate_OriginalUnchanged(t *testing.T) {
	before := addTemplate.Source
	_, err := Instantiate(addTemplate, SubstitutionMap{"TX": "double"})
	require.NoError(t, err)
	assert.Equal(t, before, addTemplate.Source)
}

func TestClone_Independent(t *testing.T) {
	clone := addTemplate.Clone()
	clone.Source = strings.ReplaceAll(clone.Source, "addKernel", "other")
	clone.Placeholders[0] = "MUTATED"

	assert.Contains(t, addTemplate.Source, "addKernel")
	assert.Equal(t, "TX", addTemplate.Placeholders[0])
}

func TestKey_Deterministic(t *testing.T) {
	subs := SubstitutionMap{"TX": "float", "EXPR": "X[i]"}
	assert.Equal(t, Key(addTemplate, subs), Key(addTemplate, subs))

	// different substitutions, different identity
	other := SubstitutionMap{"TX": "double", "EXPR": "X[i]"}
	assert.NotEqual(t, Key(addTemplate, subs), Key(addTemplate, other))
}

func TestEngine_CachesByKey(t *testing.T) {
	eng := NewEngine()
	subs := SubstitutionMap{"TX": "float", "EXPR": "X[i]", "GROUP_SIZE": "64"}

	first, err := eng.Instantiate(addTemplate, subs)
	require.NoError(t, err)
	second, err := eng.Instantiate(addTemplate, subs)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, eng.Size())

	_, err = eng.Instantiate(addTemplate, SubstitutionMap{"TX": "double", "EXPR": "X[i]", "GROUP_SIZE": "64"})
	require.NoError(t, err)
	assert.Equal(t, 2, eng.Size())
}
