package cli

import (
	"context"

	"github.com/dovakin0007/screen-time-tracking-app/internal/classify"
	"github.com/dovakin0007/screen-time-tracking-app/internal/daemon"
	"github.com/dovakin0007/screen-time-tracking-app/internal/logging"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracking daemon",
		Run:   runDaemon,
	}

	cmd.Flags().Bool("debug", false, "Enable debug logging")
	cmd.Flags().Bool("quiet", false, "Log to file only, not stderr")
	cmd.Flags().String("dispatch-endpoint", "", "Classification dispatch endpoint (default "+classify.DispatchAddr+")")
	cmd.Flags().String("result-endpoint", "", "Classification result endpoint (default "+classify.ResultAddr+")")

	RootCmd.AddCommand(cmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	debug, _ := cmd.Flags().GetBool("debug")
	quiet, _ := cmd.Flags().GetBool("quiet")
	dispatch, _ := cmd.Flags().GetString("dispatch-endpoint")
	result, _ := cmd.Flags().GetString("result-endpoint")

	logger := logging.New(logging.Options{
		Path:     getLogPath(),
		ToStderr: !quiet,
		Debug:    debug,
	})

	err := daemon.Run(context.Background(), daemon.Options{
		DBPath:       getDBPath(),
		ConfigPath:   getConfigPath(),
		DispatchAddr: dispatch,
		ResultAddr:   result,
	}, logger)
	if err != nil {
		exitErr("run daemon", err)
	}
}
