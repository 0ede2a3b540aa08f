package main

import (
	"os"

	"github.com/bianoble/bridge/cmd/bridge/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
