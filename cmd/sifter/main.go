package main

import (
	"os"

	"github.com/garagon/sifter/cmd/sifter/commands"
)

func main() {
	os.Exit(commands.ExitCode(commands.Execute()))
}
