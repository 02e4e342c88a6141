package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.design/x/hotkey/mainthread"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// macOS delivers hotkey events only to the main thread
	mainthread.Init(func() {
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})
}
