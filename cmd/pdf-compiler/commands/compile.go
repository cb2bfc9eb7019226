package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spherical/pdf-compiler/cmd/pdf-compiler/ui"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/pdf"
	pdfcompiler "github.com/spherical/pdf-compiler/pkg/compiler"
)

var outputPath string

var compileCmd = &cobra.Command{
	Use:   "compile <file.tex>",
	Short: "Compile a LaTeX file to PDF",
	Long: `Submit a LaTeX file to the configured compilation service and write the PDF.

Exit codes:
  0  the PDF was written
  1  the document failed to compile (the log is printed) or the input is invalid
  2  the compilation service is unavailable
  3  the compilation service answered in an unexpected way`,
	Example: `  pdf-compiler compile paper.tex
  pdf-compiler compile -o out/paper.pdf paper.tex
  COMPILER_ENDPOINT=https://latex.example.com/compile pdf-compiler compile paper.tex`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: <input-name>.pdf)")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]
	if err := validateSourcePath(sourcePath); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := pdfcompiler.NewClientWithConfig(cfg, newLogger(cfg, true))
	if err != nil {
		return fmt.Errorf("create compiler: %w", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := outputPath
	if out == "" {
		out = outputPathFor(sourcePath)
	}
	return compileFile(ctx, client, sourcePath, out)
}

// compileFile compiles sourcePath with c and writes the PDF to out.
func compileFile(ctx context.Context, c domain.Compiler, sourcePath, out string) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	traceID := uuid.NewString()
	ctx = pdfcompiler.WithTraceID(ctx, traceID)

	spin := ui.NewSpinner(fmt.Sprintf("Compiling %s...", filepath.Base(sourcePath)))
	spin.Start()
	start := time.Now()
	artifact, err := c.Compile(ctx, string(source))
	spin.Stop()

	if err != nil {
		return reportFailure(pdfcompiler.AsCompilationError(err), traceID)
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, artifact.Data, 0644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}

	ui.Success("Wrote %s (%s in %v)", out, ui.Bytes(artifact.Size()), time.Since(start).Round(time.Millisecond))
	if info, err := pdf.Inspect(artifact.Data); err == nil {
		ui.Info("%s", describePDF(info))
	}
	return nil
}

// describePDF renders the metadata worth showing after a successful compile.
func describePDF(info *pdf.Info) string {
	s := fmt.Sprintf("%d page(s)", info.Pages)
	if info.Title != "" {
		s += fmt.Sprintf(", title %q", info.Title)
	}
	if info.Producer != "" {
		s += ", produced by " + info.Producer
	}
	return s
}

func reportFailure(ce *domain.CompilationError, traceID string) error {
	switch ce.Kind {
	case domain.KindCompilationFailed:
		ui.Error("Compilation failed")
		ui.Log(ce.Log)
	default:
		ui.Error("%s", ce.Error())
	}
	ui.Hint("%s", ce.Hint())
	if verbose {
		ui.Hint("trace id: %s", traceID)
	}
	return &exitError{code: exitCodeFor(ce), err: ce}
}
