package main

import (
	"fmt"
	"os"

	"github.com/MrSnakeDoc/sourcehub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ sourcehub: %v\n", err)
		os.Exit(1)
	}
}
