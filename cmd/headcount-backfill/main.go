// headcount-backfill takes a headcount sample for a given date using the
// current duty roster. Useful when the sampler missed its 23:59 tick (the
// worker never retries on its own).
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/headcount-backfill -date 2026-08-30
//
// Without -date, samples for today.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/pqpsoft/tracker_backend/workflow"
)

func main() {
	dateFlag := flag.String("date", "", "date to sample (YYYY-MM-DD, defaults to today)")
	flag.Parse()

	fireTime := time.Now().UTC()
	if *dateFlag != "" {
		parsed, err := utils.ParseDate(*dateFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date: %v\n", err)
			os.Exit(1)
		}
		fireTime = parsed
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	sampler := workflow.NewHeadcountSampler(db, config.GetLogger())
	sampler.SampleOnce(context.Background(), fireTime)
	fmt.Printf("Sampled headcount for %s\n", fireTime.Format("2006-01-02"))
}
