package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/mediastackhq/mediastack/cmd/mediastack/cli"
)

func main() {
	ctx := context.Background()

	name := path.Base(os.Args[0])

	InitAndExecute(ctx, name)
}

func InitAndExecute(ctx context.Context, name string) {
	if err := cli.RootCmd(ctx, name).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
