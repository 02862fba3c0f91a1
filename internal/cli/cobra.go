package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "photobooth",
		Short: "Photobooth turns four photos into a printable strip",
		Long: `Photobooth captures four photos from a camera, or crops four uploaded
photos, and composes them into a vintage or modern photostrip.

It runs headless from the command line, watches a hot folder, or serves a
local kiosk over HTTP and websockets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			if !needsSetup(cmd) {
				return nil
			}
			return root.Setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			root.Close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", "", "config file (json, yaml or toml; default $PHOTOBOOTH_CONFIG or ~/.config/photobooth/config.json)")

	// Add subcommands
	rootCmd.AddCommand(newStripCmd(root))
	rootCmd.AddCommand(newCaptureCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// needsSetup is false for commands that only print help or metadata.
func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "man", "completion", "help":
			return false
		}
	}
	return true
}

func addStripFlags(cmd *cobra.Command, req *stripRequest, defaultMode string) {
	cmd.Flags().StringVarP(&req.mode, "mode", "m", defaultMode, "strip mode (vintage, modern)")
	cmd.Flags().StringVar(&req.background, "background", "", "vintage background color (name or #hex)")
	cmd.Flags().StringVar(&req.frame, "frame", "", "modern frame color (name or #hex)")
	cmd.Flags().StringVar(&req.note, "note", "", "modern note printed under the photos")
	cmd.Flags().BoolVar(&req.date, "date", false, "print today's date on the strip")
	cmd.Flags().StringVarP(&req.output, "output", "o", "", "output directory (default from config)")
}

func newStripCmd(root *Root) *cobra.Command {
	var req stripRequest

	cmd := &cobra.Command{
		Use:   "strip <photo1> <photo2> <photo3> <photo4>",
		Short: "Compose a strip from four photos",
		Long: `Crop four photos to the mode's aspect ratio and compose them into a strip.
Each photo is cropped around its center at the given zoom.

Examples:
  photobooth strip a.jpg b.jpg c.jpg d.jpg
  photobooth strip --mode vintage --date --background cream *.jpg
  photobooth strip --note "Ana & Luis" --frame "#FFE4E1" --zoom 90 a.jpg b.jpg c.jpg d.jpg`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdStrip(cmd.Context(), req, args)
		},
	}
	addStripFlags(cmd, &req, "modern")
	cmd.Flags().Float64Var(&req.zoom, "zoom", 0, "crop zoom in percent, 20-100 (default from config)")

	return cmd
}

func newCaptureCmd(root *Root) *cobra.Command {
	var req stripRequest

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take four photos with the camera and compose a strip",
		Long: `Open the configured camera, count down before each of the four photos and
compose the result into a strip.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdCapture(cmd.Context(), req)
		},
	}
	addStripFlags(cmd, &req, "vintage")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var (
		addr     string
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local kiosk server",
		Long: `Serve the booth over HTTP: kiosk actions under /api, shell events on /ws,
job results on /stream and stored strips under /api/strips.

Examples:
  photobooth serve --addr 127.0.0.1:8080
  photobooth serve --watch ./hotfolder`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdServe(cmd.Context(), addr, watchDir)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "also turn images dropped into this directory into strips")

	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var req stripRequest

	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Turn every four images dropped into a folder into a strip",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return root.cmdWatch(cmd.Context(), req, dir)
		},
	}
	addStripFlags(cmd, &req, "modern")
	cmd.Flags().Float64Var(&req.zoom, "zoom", 0, "crop zoom in percent, 20-100 (default from config)")

	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate photobooth configuration",
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow(format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "", "print the full config as json, yaml or toml")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configValidate()
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			root.cmdVersion()
		},
	}
}
