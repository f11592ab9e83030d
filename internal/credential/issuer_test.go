package credential

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueProducesDecodableValue(t *testing.T) {
	g := NewGenerator()
	value, err := g.Issue(uuid.New())
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(value)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestIssueIsURLSafe(t *testing.T) {
	g := NewGenerator()
	value, err := g.Issue(uuid.New())
	require.NoError(t, err)
	assert.NotContains(t, value, "+")
	assert.NotContains(t, value, "/")
	assert.NotContains(t, value, "=")
}

func TestIssueValuesAreUnique(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		value, err := g.Issue(uuid.New())
		require.NoError(t, err)
		require.False(t, seen[value], "duplicate credential issued")
		seen[value] = true
	}
}

func TestIssueIgnoresRegistrationID(t *testing.T) {
	// The value must carry no registration-derived structure; the same id
	// yields different values on every call.
	g := NewGenerator()
	id := uuid.New()
	a, err := g.Issue(id)
	require.NoError(t, err)
	b, err := g.Issue(id)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
