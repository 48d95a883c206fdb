package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"emailguard/internal/config"
	"emailguard/internal/ratelimit"
	"emailguard/internal/result"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Verify a single email address",
	Long: `Verify a single email address: syntax, disposable-domain check,
MX/DMARC lookup, and an SMTP RCPT TO probe with catch-all detection.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	email := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	limiter := ratelimit.NewMemory(cfg.RateLimit.RequestsPerHour, cfg.RateLimit.Window())
	throttle := ratelimit.DefaultDomainThrottle()
	v, err := buildVerifier(cfg, limiter, throttle)
	if err != nil {
		return err
	}

	outcome := v.Verify(context.Background(), "cli", email)
	rec := result.Map(outcome)

	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	printResult(rec)
	return nil
}

func printResult(r result.Record) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	fmt.Println()
	white.Printf("Account:  %s\n", r.Account)
	white.Printf("Domain:   %s\n", r.Domain)
	fmt.Println()

	fmt.Print("Status:   ")
	switch r.Status {
	case "valid":
		green.Println("VALID")
	case "catch-all":
		yellow.Println("CATCH-ALL")
	case "error":
		red.Println("ERROR")
	default:
		red.Println("INVALID")
	}
	if r.SubStatus != nil {
		fmt.Printf("Reason:   %s\n", *r.SubStatus)
	}
	fmt.Printf("Message:  %s\n", r.Message)
	fmt.Println()

	fmt.Printf("MX Found:      %s\n", r.MXFound)
	if r.MXRecord != nil {
		fmt.Printf("MX Record:     %s\n", *r.MXRecord)
	}
	fmt.Printf("SMTP Provider: %s\n", r.SMTPProvider)
	if r.DMARCPolicy != nil {
		fmt.Printf("DMARC Policy:  %s\n", *r.DMARCPolicy)
	}
	fmt.Printf("Free Email:    %s\n", r.FreeEmail)
	fmt.Printf("First Name:    %s\n", r.FirstName)
	fmt.Printf("Last Name:     %s\n", r.LastName)
	fmt.Println()
}
