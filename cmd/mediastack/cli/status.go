package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mediastackhq/mediastack/api/types"
	"github.com/mediastackhq/mediastack/pkg/wsclient"
)

// StatusCmd follows a provisioning run over the push channel and prints
// progress until the session reaches a terminal state.
func StatusCmd(ctx context.Context, name string, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Follow the current provisioning run",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), v)
		},
	}

	cmd.Flags().String("host", "127.0.0.1", "API server host")
	cmd.Flags().Int("port", 8080, "API server port")

	return cmd
}

func runStatus(ctx context.Context, v *viper.Viper) error {
	addr := net.JoinHostPort(v.GetString("host"), strconv.Itoa(v.GetInt("port")))
	url := fmt.Sprintf("ws://%s/api/ws", addr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var terminal bool
	client := wsclient.New(url)
	err := client.Run(ctx, func(msg types.Message) {
		printStatus(msg)
		if msg.Type == types.MessageTypeStatusComplete {
			terminal = true
			cancel()
		}
	})
	if terminal {
		return nil
	}
	return err
}

func printStatus(msg types.Message) {
	var status types.InstallStatusResponse
	if err := json.Unmarshal(msg.Payload, &status); err != nil {
		return
	}

	stage := status.CurrentStageName
	if stage == "" {
		stage = string(status.Status)
	}
	line := fmt.Sprintf("[%5.1f%%] %s", status.OverallProgress, stage)

	switch status.Status {
	case types.InstallationStateCompleted:
		color.Green(line)
		for name, url := range status.ResultSummary {
			fmt.Printf("  %s: %s\n", name, url)
		}
	case types.InstallationStateFailed:
		color.Red(line)
		for _, stageErr := range status.Errors {
			fmt.Printf("  %s: %s\n", stageErr.StageID, stageErr.Message)
		}
	default:
		fmt.Println(line)
	}
}
