package main

import (
	"fmt"
	"os"

	"github.com/hewudi666/maro/workflows"
)

// main entry point to all the training workflows
func main() {
	rootCommand := workflows.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
