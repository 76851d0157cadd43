package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/app"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/config"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/extract"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "docchat"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Document chat server",
		Long:    "Ingests PDF, Word and text documents, extracts and chunks their text, and serves retrieval over REST and MCP",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newExtractCommand())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newExtractCommand() *cobra.Command {
	var showChunks, check bool

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Run the extraction chain on a local file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if check {
				if missing := app.WriteToolCheck(out, extract.CheckTools()); missing > 0 {
					return fmt.Errorf("%d external tools missing", missing)
				}
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("extract requires a file argument")
			}

			settings, err := config.LoadSettingsWithFlags(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			return app.RunExtract(cmd.Context(), out, settings, args[0], app.ExtractOptions{ShowChunks: showChunks}, nil)
		},
	}

	cmd.Flags().BoolVar(&showChunks, "chunks", false, "Print the chunks instead of the full text")
	cmd.Flags().BoolVar(&check, "check", false, "Report availability of external extraction tools")
	cmd.Flags().Int("chunk-size", 0, "Maximum chunk size in characters")
	cmd.Flags().Int("chunk-overlap", 0, "Characters repeated at the start of each following chunk")
	cmd.Flags().Bool("ocr", true, "Enable the OCR fallback for PDFs")
	cmd.Flags().String("ocr-languages", "", "Tesseract language list, e.g. ita+eng")
	return cmd
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunWithDeps(ctx, app.DefaultRunParams(), flags, version)
}
