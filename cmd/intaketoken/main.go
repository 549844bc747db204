// intaketoken issues a bearer token for the records API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"voice-intake-service/internal/auth"
)

func main() {
	_ = godotenv.Load()

	subject := flag.String("sub", "ops", "Token subject")
	scope := flag.String("scope", "records", "Token scope")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	issuer := flag.String("iss", os.Getenv("RECORDS_JWT_ISSUER"), "Token issuer")
	flag.Parse()

	secret := os.Getenv("RECORDS_JWT_SECRET")
	if secret == "" {
		log.Fatal("RECORDS_JWT_SECRET required")
	}

	token, err := auth.IssueToken(secret, *issuer, *subject, *scope, *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
