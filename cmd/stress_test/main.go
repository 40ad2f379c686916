package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/item-ledger/internal/app"
	"github.com/rl1809/item-ledger/internal/config"
	"github.com/rl1809/item-ledger/internal/core/domain"
	"github.com/rl1809/item-ledger/internal/telemetry"
)

const (
	itemCode      = "stress-item"
	initialQty    = 20
	totalRequests = 50
)

func main() {
	configPath := flag.String("config", "itemledger.yaml", "path to config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := app.Open(ctx, cfg, telemetry.NewLogger(os.Stderr, "warn"))
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer a.Close(ctx)

	if err := a.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	a.Start(ctx)

	// A fresh owner per run keeps earlier runs out of the numbers.
	owner := "stress-" + uuid.NewString()
	if _, err := a.Ledger.Add(ctx, owner, itemCode, initialQty, "stress seed"); err != nil {
		log.Fatalf("failed to seed balance: %v", err)
	}

	var successCount atomic.Int32
	var insufficientCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := a.Ledger.Subtract(ctx, owner, itemCode, 1, "stress spend")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientQuantity):
				insufficientCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("subtract failed: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	insufficient := insufficientCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Owner:            %s\n", owner)
	fmt.Printf("Initial Quantity: %d\n", initialQty)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialQty && insufficient == totalRequests-initialQty {
		fmt.Printf("PASS: Exactly %d subtractions succeeded, %d refused\n", initialQty, totalRequests-initialQty)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d refused, got %d/%d\n",
			initialQty, totalRequests-initialQty, success, insufficient)
	}

	finalQty, err := a.Ledger.GetQuantity(ctx, owner, itemCode)
	if err != nil {
		log.Fatalf("failed to read final balance: %v", err)
	}
	fmt.Printf("Final Quantity:   %d\n", finalQty)

	b, _ := a.Ledger.GetBalance(ctx, owner, itemCode)
	if finalQty == 0 && b == nil {
		fmt.Println("PASS: Balance depleted to 0 and row removed")
	} else {
		fmt.Printf("FAIL: Expected empty balance, got %d\n", finalQty)
	}

	entries, err := a.Ledger.History(ctx, domain.HistoryFilter{Owner: owner, ItemCode: itemCode, Limit: totalRequests + 1})
	if err != nil {
		log.Fatalf("failed to read history: %v", err)
	}
	if len(entries) == initialQty+1 {
		fmt.Println("PASS: One history entry per successful mutation")
	} else {
		fmt.Printf("FAIL: Expected %d history entries, got %d\n", initialQty+1, len(entries))
	}
}
