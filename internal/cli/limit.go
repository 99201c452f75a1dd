package cli

import (
	"fmt"

	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	limitCmd := &cobra.Command{
		Use:   "limit",
		Short: "Manage per-app daily limits",
	}

	setCmd := &cobra.Command{
		Use:   "set <app-name>",
		Short: "Set a daily limit for an app",
		Args:  cobra.ExactArgs(1),
		Run:   runLimitSet,
	}
	setCmd.Flags().Int64P("minutes", "m", 0, "Daily limit in minutes (required)")
	setCmd.Flags().Bool("alert", false, "Alert when the limit is exceeded")
	setCmd.Flags().Bool("close", false, "Close the app when the limit is exceeded")
	setCmd.Flags().Bool("alert-before-close", false, "Alert once before closing")
	setCmd.Flags().Int64("alert-duration", 300, "Seconds between repeated alerts")
	setCmd.MarkFlagRequired("minutes")

	clearCmd := &cobra.Command{
		Use:   "clear <app-name>",
		Short: "Remove an app's daily limit",
		Args:  cobra.ExactArgs(1),
		Run:   runLimitClear,
	}

	limitCmd.AddCommand(setCmd, clearCmd)
	RootCmd.AddCommand(limitCmd)
}

func runLimitSet(cmd *cobra.Command, args []string) {
	minutes, _ := cmd.Flags().GetInt64("minutes")
	alert, _ := cmd.Flags().GetBool("alert")
	closeApp, _ := cmd.Flags().GetBool("close")
	alertBeforeClose, _ := cmd.Flags().GetBool("alert-before-close")
	alertDuration, _ := cmd.Flags().GetInt64("alert-duration")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	err = s.SetDailyLimit(cmd.Context(), model.DailyLimit{
		AppName:          args[0],
		TimeLimitMinutes: minutes,
		ShouldAlert:      alert,
		ShouldClose:      closeApp,
		AlertBeforeClose: alertBeforeClose,
		AlertDuration:    alertDuration,
	})
	if err != nil {
		exitErr("set limit", err)
	}
	fmt.Printf("limit set: %s, %d minutes/day\n", args[0], minutes)
}

func runLimitClear(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.ClearDailyLimit(cmd.Context(), args[0]); err != nil {
		exitErr("clear limit", err)
	}
	fmt.Printf("limit cleared: %s\n", args[0])
}
