package ids

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsTimeOrdered(t *testing.T) {
	generated := make([]string, 500)
	for i := range generated {
		generated[i] = New()
	}

	assert.True(t, sort.StringsAreSorted(generated))

	parsed, err := uuid.Parse(generated[0])
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
