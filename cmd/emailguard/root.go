package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	quiet   bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "emailguard",
	Short: "Email deliverability verification tool",
	Long: `emailguard checks whether email addresses are deliverable without
sending mail: syntax, disposable-domain, and corporate classification,
MX/DMARC lookup, and an SMTP RCPT TO probe with catch-all detection.

Examples:
  emailguard check user@example.com
  emailguard bulk -f emails.txt -o results.csv
  emailguard serve`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default .emailguard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode - minimal output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if noColor {
		color.NoColor = true
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".emailguard")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	viper.ReadInConfig() // ignore error if config file doesn't exist
}
