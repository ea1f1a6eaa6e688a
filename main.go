package main

import (
	"fmt"
	"os"

	"github.com/tanpawarit/Chative-Retail-Assistant/internal/cli"
	_ "github.com/tanpawarit/Chative-Retail-Assistant/pkg/logger/autoload"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
