// Command catalogctl is the operator CLI for the review catalog: schema
// migration, bulk import and account administration against the same SQLite
// database the server uses.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
