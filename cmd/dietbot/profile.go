package dietbot

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

var (
	profileUser int64
	weightUser  int64
	weightLimit int
	profileJSON bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's profile and daily targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			u, err := userByPlatformID(sqldb, profileUser)
			if err != nil {
				return err
			}
			p, err := service.GetProfile(sqldb, u.ID)
			if err != nil {
				return err
			}
			if profileJSON {
				return printJSON(cmd.OutOrStdout(), p)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User: %s (%d)\n", u.DisplayName(), u.PlatformID)
			fmt.Fprintf(out, "Gender: %s\nAge: %d\nHeight: %dcm\nWeight: %.1fkg\n", p.Gender, p.Age, p.HeightCM, p.WeightKG)
			if p.TargetWeightKG != nil {
				fmt.Fprintf(out, "Target weight: %.1fkg\n", *p.TargetWeightKG)
			}
			fmt.Fprintf(out, "Goal: %s\nActivity: %s\n", p.Goal, p.Activity)
			fmt.Fprintf(out, "Daily: %d kcal, P %dg, F %dg, C %dg\n", p.DailyCalories, p.DailyProteinG, p.DailyFatG, p.DailyCarbsG)
			return nil
		})
	},
}

var weightCmd = &cobra.Command{
	Use:   "weight",
	Short: "Inspect body weight history",
}

var weightListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's recent weight entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			u, err := userByPlatformID(sqldb, weightUser)
			if err != nil {
				return err
			}
			logs, err := service.ListWeights(sqldb, u.ID, weightLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDATE\tKG\tNOTE")
			for _, w := range logs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%.1f\t%s\n", w.ID, w.CreatedAt.Format("2006-01-02"), w.WeightKG, w.Note)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd, weightCmd)
	profileCmd.AddCommand(profileShowCmd)
	weightCmd.AddCommand(weightListCmd)

	profileShowCmd.Flags().Int64Var(&profileUser, "user", 0, "Chat user id")
	profileShowCmd.Flags().BoolVar(&profileJSON, "json", false, "Output JSON")
	weightListCmd.Flags().Int64Var(&weightUser, "user", 0, "Chat user id")
	weightListCmd.Flags().IntVar(&weightLimit, "limit", 10, "Number of entries")
}
