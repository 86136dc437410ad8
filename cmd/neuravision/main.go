package main

import (
	"context"
	"os"

	"github.com/neuravision/neuravision/internal/cli"
)

func main() {
	cmd := cli.NewCLI()
	cmd.SetContext(context.Background())
	os.Exit(cli.Execute(cmd, os.Stderr))
}
