package main

import (
	"fmt"
	"os"

	"github.com/example/learning-platform/services/progress/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "progressctl:", err)
		os.Exit(cli.ExitCode(err))
	}
}
