// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lightsync/internal/config"
	"lightsync/internal/transport"
	"lightsync/pkg/build"
)

// Commands recognised in config.Command.
const (
	CommandList   = "list"
	CommandDevice = "device"
)

// flagValues receives raw flag input. Only flags the user actually set are
// copied onto the loaded configuration.
type flagValues struct {
	configPath      string
	endpoints       string
	device          int
	channels        int
	sampleRate      float64
	fftSize         int
	framesPerBuffer int
	lowLatency      bool
	noiseGate       float64
	verbose         bool
	logLevel        string
	logFile         string
	noTUI           bool
	metricsAddr     string
	record          bool
	output          string
	pickDevice      bool
	listen          string
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies flag overrides. It returns a nil config with a nil error
// when cobra handled the invocation itself, as with --help or --version.
func ParseArgs(args []string) (*config.Config, error) {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	rootCmd, result := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return result(), nil
}

// newRootCmd builds the command tree. The returned func reports the
// configuration produced by whichever command ran.
func newRootCmd() (*cobra.Command, func() *config.Config) {
	buildInfo := build.GetBuildFlags()
	fv := &flagValues{}
	var cfg *config.Config

	load := func(cmd *cobra.Command, command string) error {
		c, err := config.LoadConfig(fv.configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, fv, c)
		c.Command = command
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
		cfg = c
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "")
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}
	listCmd.Flags().BoolVarP(&fv.pickDevice, "interactive", "i", false,
		"Browse input devices interactively instead of printing them")
	rootCmd.AddCommand(listCmd)

	// Simulated light device
	deviceCmd := &cobra.Command{
		Use:   CommandDevice,
		Short: "Run a simulated light device that logs received frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd, CommandDevice); err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Device.Address = fv.listen
			}
			return nil
		},
	}
	deviceCmd.Flags().StringVar(&fv.listen, "listen", "",
		"Address the simulated device listens on (default from config)")
	rootCmd.AddCommand(deviceCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration
	pf.StringVar(&fv.configPath, "config", "", "Path to a YAML configuration file")

	// Endpoints
	pf.StringVarP(&fv.endpoints, "endpoints", "e", "",
		"Comma separated light device addresses; disables lookup")
	pf.StringVar(&fv.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address")

	// Audio Device Configuration
	pf.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&fv.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture; the first one is analysed")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", 0,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	pf.IntVar(&fv.fftSize, "fft-size", 0, "FFT size in points, a power of two")
	pf.Float64Var(&fv.noiseGate, "noise-gate", 0,
		"Silence buffers whose peak is below this fraction of full scale")
	pf.BoolVar(&fv.pickDevice, "pick-device", false,
		"Choose the input device interactively before starting")

	// Recording Configuration
	pf.BoolVarP(&fv.record, "record", "r", false,
		"Record audio from the specified input device")
	pf.StringVarP(&fv.output, "output", "o", "",
		"Output file name. Default is recording-YYYYMMDD-HHMMSS.wav")

	// Display and Debug Configuration
	pf.BoolVar(&fv.noTUI, "no-tui", false, "Run headless without the terminal meter")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "Show verbose output")
	pf.StringVar(&fv.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&fv.logFile, "log-file", "", "Log file used while the meter owns the terminal")

	return rootCmd, func() *config.Config { return cfg }
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cmd *cobra.Command, fv *flagValues, cfg *config.Config) {
	f := cmd.Flags()

	if f.Changed("endpoints") {
		cfg.Endpoints.Addresses = transport.ParseAddressList(fv.endpoints)
		cfg.Endpoints.Lookup.Enabled = false
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Address = fv.metricsAddr
	}

	if f.Changed("device") {
		cfg.Audio.InputDevice = fv.device
	}
	if f.Changed("channels") {
		cfg.Audio.InputChannels = fv.channels
	}
	if f.Changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if f.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if f.Changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if f.Changed("fft-size") {
		cfg.Audio.FFTSize = fv.fftSize
	}
	if f.Changed("noise-gate") {
		cfg.Audio.NoiseGate = fv.noiseGate
	}
	if f.Changed("pick-device") || f.Changed("interactive") {
		cfg.PickDevice = fv.pickDevice
	}

	if f.Changed("record") {
		cfg.Recording.Enabled = fv.record
	}
	if f.Changed("output") {
		cfg.Recording.OutputFile = fv.output
	}

	if f.Changed("no-tui") {
		cfg.Headless = fv.noTUI
	}
	if fv.verbose {
		cfg.LogLevel = "debug"
	}
	if f.Changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if f.Changed("log-file") {
		cfg.LogFile = fv.logFile
	}
}
