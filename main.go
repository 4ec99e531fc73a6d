package main

import (
	"github.com/sidkik/san/cmd"
	"github.com/sidkik/san/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
