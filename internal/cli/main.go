package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "clipcraft",
		Short:        "Cut, crop, merge and caption short clips with ffmpeg",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default ./clipcraft.yaml)")
	pf.String("out", "", "Output directory")
	pf.Int("concurrency", 0, "Parallel ffmpeg jobs")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (console, json)")

	// Hidden tuning flag (internal)
	pf.String("temp", "", "Scratch directory")
	_ = pf.MarkHidden("temp")

	extract := &cobra.Command{
		Use:   "extract <source>",
		Short: "Extract clips listed in a plan file from a local file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0])
		},
	}
	extract.Flags().String("plan", "", "Plan file (YAML or JSON) listing segments")
	extract.Flags().String("aspect", "", "Target aspect ratio, e.g. 9:16 (overrides the plan)")
	extract.Flags().Bool("merge", false, "Merge all plan segments into one clip")
	extract.Flags().String("thumb-at", "", "Thumbnail offset within each clip (HH:MM:SS,mmm or seconds)")
	_ = extract.MarkFlagRequired("plan")

	caption := &cobra.Command{
		Use:   "caption <video>",
		Short: "Burn styled captions into a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCaption(cmd, args[0])
		},
	}
	caption.Flags().String("srt", "", "SubRip file; transcribed with whisper.cpp when omitted")
	caption.Flags().String("style", "", "Caption style file (YAML or JSON)")
	caption.Flags().String("preset", "", "Caption style preset from the config file")
	caption.Flags().Bool("native", false, "Build the ASS document without ffmpeg")
	caption.MarkFlagsMutuallyExclusive("style", "preset")

	thumb := &cobra.Command{
		Use:   "thumbnail <video>",
		Short: "Capture a scaled JPEG frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumbnail(cmd, args[0])
		},
	}
	thumb.Flags().String("at", "0", "Frame offset (HH:MM:SS,mmm or seconds)")

	cfgCmd := &cobra.Command{Use: "config", Short: "Manage the config file"}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config to path (default ./clipcraft.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "clipcraft.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			return runConfigInit(cmd, path)
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	root.AddCommand(extract, caption, thumb, cfgCmd)
	return root
}
