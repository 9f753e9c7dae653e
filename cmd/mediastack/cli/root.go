package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func RootCmd(ctx context.Context, name string) *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("MEDIASTACK")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          name,
		Short:        "Media server stack provisioning daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Help()
			os.Exit(1)
			return nil
		},
	}

	cmd.AddCommand(ServeCmd(ctx, name, v))
	cmd.AddCommand(StatusCmd(ctx, name, v))
	cmd.AddCommand(VersionCmd(ctx, name))

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	return nil
}
