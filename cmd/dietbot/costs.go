package dietbot

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

var (
	costsDays int
	costsUser int64
	costsJSON bool
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Report AI usage costs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			var userID *int64
			if costsUser > 0 {
				u, err := userByPlatformID(sqldb, costsUser)
				if err != nil {
					return err
				}
				userID = &u.ID
			}
			r, err := service.Costs(sqldb, userID, costsDays, time.Now())
			if err != nil {
				return err
			}
			if costsJSON {
				return printJSON(cmd.OutOrStdout(), r)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Last %d days: $%.4f (%.2f RUB at %.2f)\n", r.Days, r.CostUSD, r.CostRUB, r.Rate)
			fmt.Fprintf(out, "Requests: %d (failed %d)\n", r.Requests, r.Failed)
			fmt.Fprintln(out, "TYPE\tREQUESTS\tUSD")
			for _, t := range r.ByType {
				fmt.Fprintf(out, "%s\t%d\t%.4f\n", t.RequestType, t.Requests, t.CostUSD)
			}
			if len(r.ByUser) > 0 {
				fmt.Fprintln(out, "USER\tREQUESTS\tUSD\tRUB")
				for _, u := range r.ByUser {
					fmt.Fprintf(out, "%s\t%d\t%.4f\t%.2f\n", u.Name, u.Requests, u.CostUSD, u.CostRUB)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(costsCmd)
	costsCmd.Flags().IntVar(&costsDays, "days", 30, "Report window in days")
	costsCmd.Flags().Int64Var(&costsUser, "user", 0, "Limit to one chat user id")
	costsCmd.Flags().BoolVar(&costsJSON, "json", false, "Output JSON")
}
