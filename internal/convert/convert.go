package convert

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/akarpov/docsync/internal/config"
)

// Converter normalizes a document into a format the index service accepts.
// Convert returns the (possibly new) artifact path and filename; when no
// transform applies it passes the input through unchanged. Callers own
// cleanup of any returned temp file that differs from the input path.
type Converter interface {
	Convert(ctx context.Context, path, filename string) (string, string, error)
}

type converter struct {
	parser *parseClient // remote spreadsheet parser, nil when unconfigured
}

func New(cfg config.ConverterConfig) Converter {
	c := &converter{}
	if cfg.ParseURL != "" {
		c.parser = newParseClient(cfg.ParseURL, cfg.ParseKey)
	} else {
		slog.Info("remote parse service not configured, spreadsheet conversion disabled")
	}
	return c
}

func (c *converter) Convert(ctx context.Context, path, filename string) (string, string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return convertCSVToText(path, filename)
	case ".xls", ".xlsx", ".xlsm":
		if c.parser == nil {
			return "", "", fmt.Errorf("convert %s: spreadsheet conversion requires the parse service", filename)
		}
		return c.parser.ToMarkdown(ctx, path, filename)
	case ".pdf":
		if err := preflightPDF(path); err != nil {
			return "", "", fmt.Errorf("convert %s: %w", filename, err)
		}
		return path, filename, nil
	default:
		return path, filename, nil
	}
}

// convertCSVToText rewrites a CSV as comma-joined plain-text lines, which the
// index service ingests more reliably than raw CSV.
func convertCSVToText(path, filename string) (string, string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open csv %s: %w", filename, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "convert-*.txt")
	if err != nil {
		return "", "", fmt.Errorf("create converted file: %w", err)
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", "", fmt.Errorf("read csv %s: %w", filename, err)
		}
		if _, err := fmt.Fprintln(tmp, strings.Join(record, ", ")); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", "", fmt.Errorf("write converted csv: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("close converted csv: %w", err)
	}

	newName := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".txt"
	return tmp.Name(), newName, nil
}
