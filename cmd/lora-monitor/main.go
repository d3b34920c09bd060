package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	showAll  bool
	jsonOut  bool
	inFile   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "lora-monitor",
	Short: "Decode tracked LoRaWAN sensor frames from gateway captures",
	Long: `lora-monitor reads gateway capture lines (packet forwarder JSON, CSV or
raw debug), keeps the frames sent by the configured sensor and prints the
decoded telemetry together with signal quality.`,
	SilenceUsage: true,
	RunE:         runMonitor,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <base64-phy-payload>",
	Short: "Decode a single PHY payload without applying the device filter",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON lines")
	rootCmd.Flags().BoolVar(&showAll, "all", false, "also report receptions from other devices")
	rootCmd.Flags().StringVar(&inFile, "file", "", "read captures from file instead of stdin")

	rootCmd.AddCommand(decodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
