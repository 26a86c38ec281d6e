package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"perks/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"amex_gold", "amex_plat", "venture_x", "citi_strata_elite", "hilton_aspire"}, c.CardOrder)
	assert.Equal(t, []string{"alex", "sam"}, c.UserOrder)
	assert.Equal(t, "alex", c.DefaultUser())

	plat := c.Cards["amex_plat"]
	require.Len(t, plat.Credits, 6)
	assert.Equal(t, "uber", plat.Credits[0].CreditID)
	assert.Equal(t, core.Monthly, plat.Credits[0].Cadence)
	assert.Equal(t, int64(1500), plat.Credits[0].Amount.Cents)

	freeNight := c.Cards["hilton_aspire"].Credits[2]
	assert.Equal(t, "free_night", freeNight.CreditID)
	assert.Equal(t, int64(0), freeNight.Amount.Cents)

	alex, err := c.User("alex")
	require.NoError(t, err)
	vx, ok := alex.Card("venture_x")
	require.True(t, ok)
	assert.Equal(t, "2024-07-15", vx.OpenedDate.String())

	assert.Equal(t, "Lululemon Credit", c.CreditName("lulu"))
	assert.Equal(t, "mystery", c.CreditName("mystery"))
	assert.Equal(t, "Capital One Venture X", c.CardName("venture_x"))
}

func TestUnknownUser(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.User("nobody")
	assert.ErrorIs(t, err, core.ErrUnknownUser)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unsupported cadence",
			doc: `
[[cards]]
key = "c"
  [[cards.credits]]
  credit_id = "x"
  cadence = "weekly"
  amount = 1
  period_type = "calendar"
`,
			want: core.ErrUnsupportedCadence,
		},
		{
			name: "unknown period type",
			doc: `
[[cards]]
key = "c"
  [[cards.credits]]
  credit_id = "x"
  cadence = "monthly"
  amount = 1
  period_type = "fiscal"
`,
			want: core.ErrUnknownPeriodType,
		},
		{
			name: "unknown card in portfolio",
			doc: `
[[users]]
id = "u"
  [[users.cards]]
  id = "ghost"
`,
			want: core.ErrUnknownCard,
		},
		{
			name: "anniversary credit without opened date",
			doc: `
[[cards]]
key = "vx"
  [[cards.credits]]
  credit_id = "travel"
  cadence = "annual"
  amount = 300
  period_type = "anniversary"

[[users]]
id = "u"
  [[users.cards]]
  id = "vx"
`,
			want: core.ErrMissingAnchor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseRejectsMalformedDate(t *testing.T) {
	_, err := Parse(`
[[cards]]
key = "c"

[[users]]
id = "u"
  [[users.cards]]
  id = "c"
  opened = "07/15/2024"
`)
	assert.Error(t, err)
}

func TestParseKeepsLookupKeySeparateFromID(t *testing.T) {
	c, err := Parse(`
[[cards]]
key = "amex_plat"
id = "amex_personal_plat"
name = "Amex Platinum"
`)
	require.NoError(t, err)
	assert.Equal(t, "amex_personal_plat", c.Cards["amex_plat"].ID)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[cards]]
key = "gold"
name = "Gold"
  [[cards.credits]]
  credit_id = "dining"
  cadence = "monthly"
  amount = "12.50"
  period_type = "calendar"
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), c.Cards["gold"].Credits[0].Amount.Cents)
	assert.Equal(t, "gold", c.Cards["gold"].ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Len(t, def.Cards, 5)
}
