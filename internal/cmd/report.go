package cmd

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"

	"github.com/harrison/tsvalidate/internal/filelock"
	"github.com/harrison/tsvalidate/internal/logger"
	"github.com/harrison/tsvalidate/internal/report"
)

// NewReportCommand creates the 'tsvalidate report' command
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or render the last run's report",
		Long: `Print a persisted report stream, or render it to a standalone HTML page.

Streams:
  validate          every package's log, with the run summary
  validate-errors   error output only`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	cmd.Flags().String("stream", report.InfoStream, "Stream to show (validate or validate-errors)")
	cmd.Flags().String("html", "", "Write the stream as HTML to this file instead of printing it")
	cmd.Flags().String("log-dir", "", "Directory holding the reports (default: from config)")

	return cmd
}

// runReport executes the report command
func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logDir := cfg.LogDir
	if cmd.Flags().Changed("log-dir") {
		logDir, _ = cmd.Flags().GetString("log-dir")
	}

	stream, _ := cmd.Flags().GetString("stream")
	if stream != report.InfoStream && stream != report.ErrorStream {
		return fmt.Errorf("unknown stream %q (want %s or %s)", stream, report.InfoStream, report.ErrorStream)
	}

	path := logger.StreamPath(logDir, stream)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("no report at %s; run 'tsvalidate validate' first", path)
	}
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	htmlPath, _ := cmd.Flags().GetString("html")
	if htmlPath == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	page, err := RenderHTML(stream, data)
	if err != nil {
		return err
	}
	if err := filelock.AtomicWrite(htmlPath, page); err != nil {
		return fmt.Errorf("write HTML report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "HTML report written to: %s\n", htmlPath)
	return nil
}

// RenderHTML renders a persisted stream as a standalone HTML page. Every
// log line is kept on its own line and shown literally.
func RenderHTML(title string, stream []byte) ([]byte, error) {
	md := goldmark.New()

	var src strings.Builder
	fmt.Fprintf(&src, "# %s\n\n", title)
	for _, line := range strings.Split(strings.TrimRight(string(stream), "\n"), "\n") {
		if line == "" {
			src.WriteString("\n")
			continue
		}
		src.WriteString(escapeMarkdown(line))
		src.WriteString("  \n")
	}

	var body bytes.Buffer
	if err := md.Convert([]byte(src.String()), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// escapeMarkdown keeps compiler and npm output from being read as markup.
func escapeMarkdown(line string) string {
	var b strings.Builder
	for _, r := range line {
		if strings.ContainsRune("\\`*_{}[]()#+-.!|<>~", r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
