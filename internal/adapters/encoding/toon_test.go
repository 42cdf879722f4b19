package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeJSONRoundTrips(t *testing.T) {
	e := NewEncoder()
	type payload struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	in := payload{Name: "bundle.tonk", Size: 42}

	data, err := e.EncodeJSON(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, e.DecodeJSON(data, &out))
	assert.Equal(t, in, out)
}

func TestEncodeTOONProducesNonEmptyOutput(t *testing.T) {
	e := NewEncoder()
	data, err := e.EncodeTOON(map[string]any{"valid": true, "errors": 0})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
