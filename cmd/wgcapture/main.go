package main

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string

	flagTarget  string
	flagFrames  int
	flagOut     string
	flagTimeout int
)

var rootCmd = &cobra.Command{
	Use:   "wgcapture",
	Short: "Windows.Graphics.Capture frame grabber",
	Long:  `wgcapture captures frames from a monitor or window through Windows.Graphics.Capture and writes them to disk as raw BGRA.`,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture frames from the configured target",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd)
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wgcapture v%s\n", version)
		if info, err := host.Info(); err == nil {
			fmt.Printf("%s %s (%s)\n", info.Platform, info.PlatformVersion, info.KernelArch)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is wgcapture.yaml in the config directory)")

	captureCmd.Flags().StringVar(&flagTarget, "target", "", `capture target: "primary", "monitor:<n>" or "window:<hwnd>"`)
	captureCmd.Flags().IntVar(&flagFrames, "frames", 0, "number of frames to capture")
	captureCmd.Flags().StringVar(&flagOut, "out", "", "output directory")
	captureCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "seconds to wait for all frames")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
