package dietbot

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

var (
	lookupGrams    int
	lookupJSON     bool
	lookupEstimate bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <food name> [grams]",
	Short: "Resolve nutrition for a food through the provider chain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grams := lookupGrams
		if len(args) > 1 {
			if v, err := strconv.Atoi(args[len(args)-1]); err == nil && v > 0 && !cmd.Flags().Changed("grams") {
				grams = v
				args = args[:len(args)-1]
			}
		}
		name := strings.TrimSpace(strings.Join(args, " "))
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			resolver, err := newResolver(sqldb, cfg, nil, logger)
			if err != nil {
				return err
			}
			var res nutrition.Result
			if lookupEstimate {
				res = resolver.ResolveOrEstimate(cmd.Context(), name, grams)
			} else {
				res, err = resolver.Resolve(cmd.Context(), name, grams)
				if err != nil {
					return err
				}
			}
			if lookupJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Food: %s\n", res.Name)
			fmt.Fprintf(out, "Source: %s (%s)\n", res.Source, res.Tier)
			fmt.Fprintf(out, "Weight: %dg\n", res.Grams)
			fmt.Fprintf(out, "Calories: %d\nProtein: %.1fg\nFat: %.1fg\nCarbs: %.1fg\nFiber: %.1fg\n", res.Calories, res.ProteinG, res.FatG, res.CarbsG, res.FiberG)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().IntVar(&lookupGrams, "grams", nutrition.DefaultGrams, "Portion weight in grams")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Output JSON")
	lookupCmd.Flags().BoolVar(&lookupEstimate, "estimate", false, "Fall back to the built-in table instead of failing on a miss")
}
