package main

import (
	"os"

	"github.com/reiness/edos-jls-chatbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
