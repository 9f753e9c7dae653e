package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediastackhq/mediastack/pkg/versions"
)

func VersionCmd(ctx context.Context, name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Show the %s version", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", name, versions.Version)
			return nil
		},
	}

	return cmd
}
