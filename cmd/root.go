package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "prosearch"}

	root.AddCommand(serveCMD(), researchCMD())
	_ = root.Execute()
}
