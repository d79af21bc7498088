package main

import (
	"github.com/mdtanrikulu/dnssec-oracle/cmd"
)

func main() {
	cmd.Execute()
}
