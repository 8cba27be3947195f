package dietbot

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

var (
	statsUser   int64
	statsPeriod string
	statsOffset int
	statsJSON   bool
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's totals and entries for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			u, err := userByPlatformID(sqldb, statsUser)
			if err != nil {
				return err
			}
			day, err := service.TodayForUser(sqldb, u.ID, time.Now(), service.LocalZone(statsOffset))
			if err != nil {
				return err
			}
			if statsJSON {
				return printJSON(cmd.OutOrStdout(), day)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date: %s\n", day.Date)
			fmt.Fprintf(out, "Calories: %d\nProtein: %.1fg\nFat: %.1fg\nCarbs: %.1fg\nFiber: %.1fg\n", day.Calories, day.ProteinG, day.FatG, day.CarbsG, day.FiberG)
			if p, err := service.GetProfile(sqldb, u.ID); err == nil {
				fmt.Fprintf(out, "Target: %d (remaining %d)\n", p.DailyCalories, p.DailyCalories-day.Calories)
			}
			fmt.Fprintln(out, "ID\tTIME\tFOOD\tGRAMS\tKCAL\tSOURCE")
			for _, f := range day.Entries {
				fmt.Fprintf(out, "%d\t%s\t%s\t%d\t%d\t%s\n", f.ID, f.CreatedAt.In(service.LocalZone(statsOffset)).Format("15:04"), f.FoodName, f.Grams, f.Calories, f.Source)
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show period rollups for a user (today, yesterday, week, month)",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := service.LocalZone(statsOffset)
		from, to, err := service.PeriodRange(statsPeriod, time.Now(), loc)
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			u, err := userByPlatformID(sqldb, statsUser)
			if err != nil {
				return err
			}
			s, err := service.Stats(sqldb, u.ID, from, to, loc)
			if err != nil {
				return err
			}
			if statsJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Period: %s to %s\n", s.FromDate, s.ToDate)
			fmt.Fprintf(out, "Total: %d kcal\nAverage: %d kcal/day\nDays with data: %d\n", s.TotalCalories, s.AvgCalories, s.DaysWithData)
			if s.MinDay != nil && s.MaxDay != nil {
				fmt.Fprintf(out, "Min: %d (%s)\nMax: %d (%s)\n", s.MinDay.Calories, s.MinDay.Date, s.MaxDay.Calories, s.MaxDay.Date)
			}
			fmt.Fprintf(out, "Protein: %.1fg\nFat: %.1fg\nCarbs: %.1fg\nFiber: %.1fg\n", s.ProteinG, s.FatG, s.CarbsG, s.FiberG)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(todayCmd, statsCmd)
	for _, c := range []*cobra.Command{todayCmd, statsCmd} {
		c.Flags().Int64Var(&statsUser, "user", 0, "Chat user id")
		c.Flags().IntVar(&statsOffset, "utc-offset", service.DefaultUTCOffsetHours, "Local day offset from UTC in hours")
		c.Flags().BoolVar(&statsJSON, "json", false, "Output JSON")
	}
	statsCmd.Flags().StringVar(&statsPeriod, "period", service.PeriodWeek, "today, yesterday, week or month")
}
