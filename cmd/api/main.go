package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/schoolledger/ledger-api/internal/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
