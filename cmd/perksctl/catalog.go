package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"perks/internal/catalog"
	"perks/internal/services"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogListCmd)

	catalogValidateCmd.Flags().String("inclusion", "", "inclusion policy to validate with: intersect or start (default: EXPANSION_INCLUSION)")
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the card catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Check a catalog file and expand every user for the selected year",
	Long: `Parse and validate a catalog file, then expand every configured user
for --year. Without FILE the configured catalog (CATALOG_PATH, or the embedded
default) is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogValidate,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards and their credits",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

func loadCatalogArg(args []string) (*catalog.Catalog, string, error) {
	path := flagCatalog
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = os.Getenv("CATALOG_PATH")
	}
	cat, err := catalog.Load(path)
	if path == "" {
		path = "embedded catalog"
	}
	return cat, path, err
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	cat, path, err := loadCatalogArg(args)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	inclusion, _ := cmd.Flags().GetString("inclusion")
	if inclusion == "" {
		inclusion = os.Getenv("EXPANSION_INCLUSION")
	}
	policy, err := services.ParseInclusionPolicy(inclusion)
	if err != nil {
		return err
	}

	year := flagYear
	if year == 0 {
		year = time.Now().Year()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d cards, %d users\n", path, len(cat.CardOrder), len(cat.UserOrder))

	expander := services.NewExpander(cat.Cards, services.WithInclusionPolicy(policy))
	failed := 0
	for _, userID := range cat.UserOrder {
		instances, err := expander.Expand(cat.Users[userID], year)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %s: %v\n", userID, err)
			continue
		}
		fmt.Fprintf(out, "  %s: %d credit periods in %d\n", userID, len(instances), year)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d users failed to expand", failed, len(cat.UserOrder))
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cat, _, err := loadCatalogArg(nil)
	if err != nil {
		return err
	}

	if flagJSON {
		type credit struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Cadence string `json:"cadence"`
			Period  string `json:"periodType"`
			Amount  string `json:"amount"`
		}
		type card struct {
			Key     string   `json:"key"`
			Name    string   `json:"name"`
			Credits []credit `json:"credits"`
		}
		var cards []card
		for _, key := range cat.CardOrder {
			def := cat.Cards[key]
			c := card{Key: key, Name: def.Name}
			for _, cr := range def.Credits {
				c.Credits = append(c.Credits, credit{
					ID:      cr.CreditID,
					Name:    cat.CreditName(cr.CreditID),
					Cadence: string(cr.Cadence),
					Period:  string(cr.PeriodType),
					Amount:  cr.Amount.String(),
				})
			}
			cards = append(cards, c)
		}
		return writeJSON(cmd.OutOrStdout(), cards)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CARD\tCREDIT\tCADENCE\tPERIOD\tAMOUNT")
	for _, key := range cat.CardOrder {
		def := cat.Cards[key]
		for _, cr := range def.Credits {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", def.Name, cat.CreditName(cr.CreditID), cr.Cadence, cr.PeriodType, cr.Amount)
		}
	}
	return tw.Flush()
}
