// Package catalog loads the card catalog, credit display names and user
// portfolios from a TOML document.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"perks/internal/calendar"
	"perks/internal/core"
)

//go:embed default.toml
var defaultTOML string

type fileCredit struct {
	CreditID    string     `toml:"credit_id"`
	Cadence     string     `toml:"cadence"`
	Amount      core.Money `toml:"amount"`
	PeriodType  string     `toml:"period_type"`
	Description string     `toml:"description"`
}

type fileCard struct {
	Key     string       `toml:"key"`
	ID      string       `toml:"id"`
	Name    string       `toml:"name"`
	Credits []fileCredit `toml:"credits"`
}

type fileUserCard struct {
	ID     string        `toml:"id"`
	Opened calendar.Date `toml:"opened"`
}

type fileUser struct {
	ID    string         `toml:"id"`
	Cards []fileUserCard `toml:"cards"`
}

type file struct {
	Cards       []fileCard        `toml:"cards"`
	CreditNames map[string]string `toml:"credit_names"`
	Users       []fileUser        `toml:"users"`
}

// Catalog is the validated, immutable configuration of the tracker.
type Catalog struct {
	Cards       core.CardCatalog
	CardOrder   []string
	CreditNames map[string]string
	Users       map[string]core.UserConfig
	UserOrder   []string
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultTOML)
}

// Load reads path, or the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a TOML catalog document.
func Parse(doc string) (*Catalog, error) {
	var f file
	if _, err := toml.Decode(doc, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		Cards:       make(core.CardCatalog, len(f.Cards)),
		CreditNames: f.CreditNames,
		Users:       make(map[string]core.UserConfig, len(f.Users)),
	}
	if c.CreditNames == nil {
		c.CreditNames = map[string]string{}
	}

	var errs []error
	for _, fc := range f.Cards {
		key := fc.Key
		if key == "" {
			key = fc.ID
		}
		if key == "" {
			errs = append(errs, errors.New("card without key"))
			continue
		}
		if _, dup := c.Cards[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate card %q", key))
			continue
		}
		def := core.CardDefinition{ID: fc.ID, Name: fc.Name}
		if def.ID == "" {
			def.ID = key
		}
		for _, cr := range fc.Credits {
			credit := core.CreditDefinition{
				CreditID:    cr.CreditID,
				Cadence:     core.Cadence(cr.Cadence),
				Amount:      cr.Amount,
				PeriodType:  core.PeriodType(cr.PeriodType),
				Description: cr.Description,
			}
			if err := validateCredit(key, credit); err != nil {
				errs = append(errs, err)
				continue
			}
			def.Credits = append(def.Credits, credit)
		}
		c.Cards[key] = def
		c.CardOrder = append(c.CardOrder, key)
	}

	for _, fu := range f.Users {
		if fu.ID == "" {
			errs = append(errs, errors.New("user without id"))
			continue
		}
		if _, dup := c.Users[fu.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate user %q", fu.ID))
			continue
		}
		var u core.UserConfig
		for _, uc := range fu.Cards {
			card := core.UserCard{ID: uc.ID, OpenedDate: uc.Opened}
			if err := c.validateUserCard(card); err != nil {
				errs = append(errs, fmt.Errorf("user %q: %w", fu.ID, err))
				continue
			}
			u.Cards = append(u.Cards, card)
		}
		c.Users[fu.ID] = u
		c.UserOrder = append(c.UserOrder, fu.ID)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func validateCredit(cardKey string, credit core.CreditDefinition) error {
	fail := func(err error, value string) error {
		return &core.ConfigurationError{Err: err, Card: cardKey, Credit: credit.CreditID, Value: value}
	}
	switch {
	case credit.CreditID == "":
		return fmt.Errorf("card %q: credit without credit_id", cardKey)
	case !credit.Cadence.Valid():
		return fail(core.ErrUnsupportedCadence, string(credit.Cadence))
	case !credit.PeriodType.Valid():
		return fail(core.ErrUnknownPeriodType, string(credit.PeriodType))
	case credit.Amount.Validate() != nil:
		return fail(core.ErrInvalidAmount, credit.Amount.String())
	}
	return nil
}

// validateUserCard rejects unknown cards and anniversary credits without an
// opened date.
func (c *Catalog) validateUserCard(card core.UserCard) error {
	def, ok := c.Cards[card.ID]
	if !ok {
		return &core.ConfigurationError{Err: core.ErrUnknownCard, Value: card.ID}
	}
	if !card.OpenedDate.IsZero() {
		return nil
	}
	for _, credit := range def.Credits {
		if credit.PeriodType == core.AnniversaryPeriod {
			return &core.ConfigurationError{Err: core.ErrMissingAnchor, Card: card.ID, Credit: credit.CreditID}
		}
	}
	return nil
}

// User returns the configuration of userID.
func (c *Catalog) User(userID string) (core.UserConfig, error) {
	u, ok := c.Users[userID]
	if !ok {
		return core.UserConfig{}, fmt.Errorf("%w: %s", core.ErrUnknownUser, userID)
	}
	return u, nil
}

// DefaultUser returns the first configured user, or "" when none exist.
func (c *Catalog) DefaultUser() string {
	if len(c.UserOrder) == 0 {
		return ""
	}
	return c.UserOrder[0]
}

// CreditName returns the display name of creditID, falling back to the ID.
func (c *Catalog) CreditName(creditID string) string {
	if name, ok := c.CreditNames[creditID]; ok && name != "" {
		return name
	}
	return creditID
}

// CardName returns the display name of the card stored under cardKey.
func (c *Catalog) CardName(cardKey string) string {
	if def, ok := c.Cards[cardKey]; ok && def.Name != "" {
		return def.Name
	}
	return cardKey
}
