// package formatter exports scan history to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts a format name and its common aliases (md, text).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, txt)", shared.ErrInvalidArgument, s)
}

// Export renders scans in the given format.
func Export(format Format, scans []*models.Scan) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(models.Views(scans), true)
	case FormatCSV:
		return ExportToCSV(scans)
	case FormatMarkdown:
		return ExportToMarkdown(scans, "Scan History")
	case FormatText:
		return ExportToText(scans)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

// ExportToCSV converts scans to CSV with columns: Sequence, ID, Kind, Subtype, Media ID, Open URL, Raw, Client, Scanned At
func ExportToCSV(scans []*models.Scan) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Kind", "Subtype", "Media ID", "Open URL", "Raw", "Client", "Scanned At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, scan := range scans {
		record := []string{
			strconv.Itoa(scan.Sequence()),
			scan.ID(),
			string(scan.Kind()),
			string(scan.Subtype()),
			scan.MediaID(),
			scan.Link().OpenURL(),
			scan.Raw(),
			scan.Client(),
			scan.CreatedAt().UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders scans as a Markdown table under title.
func ExportToMarkdown(scans []*models.Scan, title string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Scans**: %d\n\n", len(scans))

	if len(scans) == 0 {
		buf.WriteString("_No scans recorded._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Kind | Media | Link | Scanned At |\n")
	buf.WriteString("|---|------|-------|------|------------|\n")
	for _, scan := range scans {
		link := scan.Link().OpenURL()
		if link != "" {
			link = fmt.Sprintf("[open](%s)", link)
		} else {
			link = "`" + escapeCell(scan.Raw()) + "`"
		}

		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			scan.Sequence(),
			kindLabel(scan),
			escapeCell(scan.MediaID()),
			link,
			scan.CreatedAt().UTC().Format("2006-01-02 15:04"),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText converts scans to plain text, one per line.
func ExportToText(scans []*models.Scan) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Scans: %d\n\n", len(scans))
	for _, scan := range scans {
		target := scan.Link().OpenURL()
		if target == "" {
			target = scan.Raw()
		}
		fmt.Fprintf(&buf, "%d. [%s] %s\n", scan.Sequence(), kindLabel(scan), target)
	}

	return buf.Bytes(), nil
}

// WriteExport writes an export to path, defaulting to scans.<ext>.
func WriteExport(format Format, scans []*models.Scan, path string) (string, error) {
	if path == "" {
		path = "scans." + Extension(format)
	}

	data, err := Export(format, scans)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Extension returns the file extension used for format.
func Extension(format Format) string {
	if format == FormatMarkdown {
		return "md"
	}
	return string(format)
}

func kindLabel(scan *models.Scan) string {
	if scan.Subtype() != "" && scan.Subtype() != "unknown" {
		return fmt.Sprintf("%s %s", scan.Kind(), scan.Subtype())
	}
	return string(scan.Kind())
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ", "`", "'").Replace(s)
}
