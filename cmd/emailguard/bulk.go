package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"emailguard/internal/config"
	"emailguard/internal/ratelimit"
	"emailguard/internal/result"
	"emailguard/internal/verify"
	"emailguard/internal/workerpool"
)

var (
	bulkFile    string
	bulkOutput  string
	bulkWorkers int
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Verify multiple email addresses from a file",
	Long: `Verify every address in a newline-delimited file concurrently through
a bounded worker pool, writing results to a CSV file in input order once
every address has been verified.`,
	RunE: runBulk,
}

func init() {
	rootCmd.AddCommand(bulkCmd)

	bulkCmd.Flags().StringVarP(&bulkFile, "file", "f", "", "input file with one email per line (required)")
	bulkCmd.Flags().StringVarP(&bulkOutput, "output", "o", "results.csv", "output CSV file")
	bulkCmd.Flags().IntVarP(&bulkWorkers, "workers", "w", 0, "concurrent workers (default: config value)")
	bulkCmd.MarkFlagRequired("file")
}

func runBulk(cmd *cobra.Command, args []string) error {
	start := time.Now()

	emails, err := loadEmails(bulkFile)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return fmt.Errorf("no emails found in %s", bulkFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	workers := bulkWorkers
	if workers <= 0 {
		workers = cfg.MaxWorkers
	}

	limiter := ratelimit.NewMemory(cfg.RateLimit.RequestsPerHour, cfg.RateLimit.Window())
	throttle := ratelimit.DefaultDomainThrottle()
	v, err := buildVerifier(cfg, limiter, throttle)
	if err != nil {
		return err
	}

	out, err := os.Create(bulkOutput)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	defer writer.Flush()
	writer.Write([]string{"email", "status", "subStatus", "account", "domain", "mxFound", "freeEmail", "message"})

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(len(emails),
			progressbar.OptionSetDescription("Verifying"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
		)
	}

	pool := workerpool.New(workers, workers*2)
	defer pool.Terminate()

	results := make([]result.Record, len(emails))

	var wg sync.WaitGroup
	for i, email := range emails {
		i, email := i, email
		future := pool.Submit(func(taskCtx context.Context) (any, error) {
			return v.Verify(taskCtx, "bulk-cli", email), nil
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			res := <-future
			if bar != nil {
				bar.Add(1)
			}
			if res.Err != nil {
				rec := result.Map(verify.Outcome{Err: verify.ErrSystemError, Reason: res.Err.Error()})
				rec.Email = email
				results[i] = rec
				return
			}
			rec := result.Map(res.Value.(verify.Outcome))
			rec.Email = email
			results[i] = rec
		}()
	}
	wg.Wait()

	var valid, invalid, errored int
	for i, rec := range results {
		switch rec.Status {
		case "valid", "catch-all":
			valid++
		case "error":
			errored++
		default:
			invalid++
		}

		sub := ""
		if rec.SubStatus != nil {
			sub = *rec.SubStatus
		}
		writer.Write([]string{emails[i], rec.Status, sub, rec.Account, rec.Domain, rec.MXFound, rec.FreeEmail, rec.Message})
	}
	writer.Flush()

	if !quiet {
		printBulkSummary(valid, invalid, errored, len(emails), start)
	}
	return nil
}

func loadEmails(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer file.Close()

	var emails []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails = append(emails, line)
	}
	return emails, scanner.Err()
}

func printBulkSummary(valid, invalid, errored, total int, start time.Time) {
	duration := time.Since(start)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	cyan.Println("========== SUMMARY ==========")
	fmt.Printf("Total:    %d\n", total)
	green.Printf("Valid:    %d\n", valid)
	red.Printf("Invalid:  %d\n", invalid)
	red.Printf("Errors:   %d\n", errored)
	fmt.Printf("Duration: %s\n", duration.Round(time.Second))
	fmt.Println()
}
