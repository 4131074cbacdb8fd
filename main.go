package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/gerunddev/sheetbridge/internal/commands"
)

const version = "0.1.0"

func main() {
	// A .env file in the working directory may set SHEETBRIDGE_* overrides;
	// variables already in the environment win.
	_ = godotenv.Load() //nolint:errcheck // the file is optional

	os.Exit(commands.Execute(version))
}
