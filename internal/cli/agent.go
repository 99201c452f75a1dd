package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-zeromq/zmq4"
	"github.com/spf13/cobra"

	"github.com/dovakin0007/screen-time-tracking-app/internal/classify"
	"github.com/dovakin0007/screen-time-tracking-app/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a loopback classifier for local testing",
		Long:  "Subscribes to the daemon's dispatch endpoint and answers every record with a fixed label. Stands in for a real classification agent.",
		Run:   runAgent,
	}

	cmd.Flags().StringP("label", "l", "Unclassified", "Classification label to answer with")

	RootCmd.AddCommand(cmd)
}

func runAgent(cmd *cobra.Command, args []string) {
	label, _ := cmd.Flags().GetString("label")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub := zmq4.NewSub(ctx)
	defer sub.Close()
	if err := sub.Dial(classify.DispatchAddr); err != nil {
		exitErr("connect dispatch socket", err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		exitErr("subscribe", err)
	}

	pub := zmq4.NewPub(ctx)
	defer pub.Close()
	if err := pub.Listen(classify.ResultAddr); err != nil {
		exitErr("bind result socket", err)
	}

	fmt.Printf("agent listening on %s, answering with %q\n", classify.DispatchAddr, label)
	for {
		msg, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "recv: %v\n", err)
			continue
		}

		var rec model.Classification
		if err := json.Unmarshal(msg.Bytes(), &rec); err != nil {
			fmt.Fprintf(os.Stderr, "drop malformed record: %v\n", err)
			continue
		}
		rec.Classification = &label

		body, _ := json.Marshal(rec)
		if err := pub.Send(zmq4.NewMsg(body)); err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			continue
		}
		fmt.Printf("classified %s as %s\n", rec.Name, label)
	}
}
