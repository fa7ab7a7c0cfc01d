package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafaelcosta/dunning/internal/rowsource"
)

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		v, ok := Resolve(rowsource.Row{"vencimento": "2024-01-05"}, "vencimento")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-05", v)
	})

	t.Run("case insensitive", func(t *testing.T) {
		v, ok := Resolve(rowsource.Row{"Vencimento": "2024-01-05"}, "vencimento")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-05", v)
	})

	t.Run("alias match", func(t *testing.T) {
		v, ok := Resolve(rowsource.Row{"datavencimento": "2024-01-05"}, "vencimento")
		assert.True(t, ok)
		assert.Equal(t, "2024-01-05", v)
	})

	t.Run("phone alias", func(t *testing.T) {
		v, ok := Resolve(rowsource.Row{"celular": "11987654321"}, "fone1")
		assert.True(t, ok)
		assert.Equal(t, "11987654321", v)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := Resolve(rowsource.Row{"outro": 1}, "vencimento")
		assert.False(t, ok)
	})
}

func TestResolveFirst(t *testing.T) {
	row := rowsource.Row{"fone2": "1133334444"}
	assert.Equal(t, "1133334444", ResolveFirst(row, "fone1", "fone2"))
	assert.Equal(t, "", ResolveFirst(row, "fone3"))
}

func TestDefaultMappings(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range DefaultMappings() {
		assert.True(t, len(m.Variable) > 1)
		assert.Equal(t, "@", m.Variable[:1])
		assert.False(t, seen[m.Variable], "duplicate variable %s", m.Variable)
		seen[m.Variable] = true
	}
	assert.True(t, seen["@nomecliente"])
	assert.True(t, seen["@vencimentoparcela"])
	assert.True(t, seen["@valorfinalparcela"])
}
