package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPositiveInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=5&window=-1&months=x", nil)

	value, err := readPositiveInt(r, "limit", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, value)

	value, err = readPositiveInt(r, "horizon", 7, 365)
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	_, err = readPositiveInt(r, "window", 30, 3650)
	assert.ErrorIs(t, err, errInvalidParam)
	_, err = readPositiveInt(r, "months", 12, 120)
	assert.ErrorIs(t, err, errInvalidParam)
	_, err = readPositiveInt(r, "limit", 10, 4)
	assert.ErrorIs(t, err, errInvalidParam)
}

func TestQueryHelpers(t *testing.T) {
	assert.Nil(t, splitQueryList("  "))
	assert.Equal(t, []string{"entregue", "pago"}, splitQueryList("entregue, ,pago"))
	assert.Equal(t, "all", defaultString(" ", "all"))

	assert.True(t, readBool(httptest.NewRequest("GET", "/?refresh=true", nil), "refresh"))
	assert.True(t, readBool(httptest.NewRequest("GET", "/?refresh=1", nil), "refresh"))
	assert.False(t, readBool(httptest.NewRequest("GET", "/?refresh=yes", nil), "refresh"))
}
