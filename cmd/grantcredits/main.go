// Command grantcredits tops up a user's credit balance. Operator tooling for
// manual grants, refunds after billing reconciliation, and promo credits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"vidforge/server/internal/adapter/repo"
	"vidforge/server/internal/credits"
)

func main() {
	var (
		userFlag   string
		amountFlag int
		reasonFlag string
	)

	flag.StringVar(&userFlag, "user", "", "user ID to credit (UUID)")
	flag.IntVar(&amountFlag, "amount", 0, "number of credits to grant (must be positive)")
	flag.StringVar(&reasonFlag, "reason", "manual grant", "ledger reason recorded with the grant")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	if amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}

	_ = godotenv.Load()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	creditRepo := repo.NewCreditRepository(pool)
	svc := credits.NewService(creditRepo)

	if err := svc.Add(ctx, userID, amountFlag, reasonFlag); err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("granted, but failed to read balance: %w", err))
	}

	fmt.Printf("User %s credited %d (%s), balance is now %d\n", userID, amountFlag, reasonFlag, balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
