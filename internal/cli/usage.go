package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func init() {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show per-app usage totals",
		Run:   runUsage,
	}

	cmd.Flags().String("from", "", "Start date, YYYY-MM-DD (default: today)")
	cmd.Flags().String("to", "", "End date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringP("app", "a", "", "Filter by application name")

	RootCmd.AddCommand(cmd)
}

func runUsage(cmd *cobra.Command, args []string) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	app, _ := cmd.Flags().GetString("app")

	today := time.Now()
	from, to := today, today
	var err error
	if fromStr != "" {
		if from, err = time.ParseInLocation(dateLayout, fromStr, time.Local); err != nil {
			exitErr("parse --from", err)
		}
	}
	if toStr != "" {
		if to, err = time.ParseInLocation(dateLayout, toStr, time.Local); err != nil {
			exitErr("parse --to", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rows, err := s.UsageBetween(cmd.Context(), from, to, app)
	if err != nil {
		exitErr("query usage", err)
	}

	b, _ := json.MarshalIndent(rows, "", "  ")
	fmt.Println(string(b))
}
