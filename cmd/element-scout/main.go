package main

import (
	"element-scout/internal/bootstrap"
	"element-scout/internal/config"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	filters    string
	outputDir  string
	headless   bool
	hiddenScan bool
)

var rootCmd = &cobra.Command{
	Use:   "element-scout [url]",
	Short: "Capture page elements, derive locators, draft automation-test prompts",
	Long: `element-scout drives a Chromium instance and records the elements you
click on a live page, together with bulk scans of everything visible
(and, optionally, hidden). Each record carries a CSS and an XPath
locator plus computed-style metadata fetched over the DevTools
protocol. Stopping the session writes a JSON result file and a
Markdown file of ready-to-use automation-test prompts.

Run without arguments to start the interactive console; pass a URL to
open a capture session on it right away.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScout,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file overlaying the environment")
	rootCmd.Flags().StringVarP(&filters, "filters", "f", "", "Capture filters, e.g. 'button,.nav-link,[data-testid]'")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for result files (default ./captures)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "Run the browser headless")
	rootCmd.Flags().BoolVar(&hiddenScan, "hidden-scan", false, "Run an initial scan that includes hidden elements")
}

func runScout(cmd *cobra.Command, args []string) error {
	ov := config.Overrides{
		ConfigFile: configFile,
		Filters:    filters,
		OutputDir:  outputDir,
	}

	if len(args) == 1 {
		ov.TargetURL = args[0]
	}

	if cmd.Flags().Changed("headless") {
		ov.Headless = &headless
	}
	if cmd.Flags().Changed("hidden-scan") {
		ov.HiddenScan = &hiddenScan
	}

	bootstrap.NewApp(ov).Run()

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
