package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelcosta/dunning/internal/rowsource"
)

func TestBuildIdentity(t *testing.T) {
	t.Run("full triple", func(t *testing.T) {
		row := rowsource.Row{
			"sequenciavenda": "1042",
			"numeroparcela":  "3",
			"codigocliente":  "778",
		}
		assert.Equal(t, "1042-3-778", BuildIdentity(row))
	})

	t.Run("numeric columns", func(t *testing.T) {
		row := rowsource.Row{
			"sequenciavenda": int64(1042),
			"numeroparcela":  int64(3),
			"codigocliente":  int64(778),
		}
		assert.Equal(t, "1042-3-778", BuildIdentity(row))
	})

	t.Run("missing parts fall back to zero", func(t *testing.T) {
		assert.Equal(t, "0-0-778", BuildIdentity(rowsource.Row{"codigocliente": "778"}))
		assert.Equal(t, "0-0-0", BuildIdentity(rowsource.Row{}))
	})

	t.Run("stable across regeneration", func(t *testing.T) {
		row := rowsource.Row{"sequenciavenda": "7", "numeroparcela": "1", "codigocliente": "55"}
		assert.Equal(t, BuildIdentity(row), BuildIdentity(row))
	})
}

func TestGeneratedItemValidate(t *testing.T) {
	valid := GeneratedItem{
		Type:       TypeOverdue,
		ClientCode: "778",
		ClientName: "Ana",
		DueDate:    "05/01/2024",
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid.Validate())
	})

	t.Run("missing client code", func(t *testing.T) {
		g := valid
		g.ClientCode = " "
		require.Error(t, g.Validate())
	})

	t.Run("missing client name", func(t *testing.T) {
		g := valid
		g.ClientName = ""
		require.Error(t, g.Validate())
	})

	t.Run("missing due date", func(t *testing.T) {
		g := valid
		g.DueDate = ""
		require.Error(t, g.Validate())
	})

	t.Run("bad type", func(t *testing.T) {
		g := valid
		g.Type = MessageType("spam")
		require.Error(t, g.Validate())
	})
}

func TestGeneratedItemBestPhone(t *testing.T) {
	t.Run("prefers first phone", func(t *testing.T) {
		g := GeneratedItem{Phone1: "(11) 98765-4321", Phone2: "(11) 3333-4444"}
		assert.Equal(t, "11987654321", g.BestPhone())
	})

	t.Run("falls back to second", func(t *testing.T) {
		g := GeneratedItem{Phone1: "", Phone2: "(11) 3333-4444"}
		assert.Equal(t, "11933334444", g.BestPhone())
	})

	t.Run("none sendable", func(t *testing.T) {
		g := GeneratedItem{Phone1: "123", Phone2: ""}
		assert.Equal(t, "", g.BestPhone())
	})
}
