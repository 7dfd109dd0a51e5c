package main

import (
	"os"

	"focusflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
