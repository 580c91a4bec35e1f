package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akarpov/docsync/internal/config"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConvertCSV(t *testing.T) {
	c := New(config.ConverterConfig{})
	src := writeTemp(t, "data.csv", "name,count\nalpha,1\nbeta,2\n")

	outPath, outName, err := c.Convert(context.Background(), src, "data.csv")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer os.Remove(outPath)

	if outPath == src {
		t.Error("CSV conversion should produce a new artifact")
	}
	if !strings.HasSuffix(outName, ".txt") {
		t.Errorf("converted name = %q, want a .txt file", outName)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, line := range []string{"name, count", "alpha, 1", "beta, 2"} {
		if !strings.Contains(text, line) {
			t.Errorf("converted text missing %q:\n%s", line, text)
		}
	}
}

func TestConvertPassThrough(t *testing.T) {
	c := New(config.ConverterConfig{})
	src := writeTemp(t, "notes.txt", "plain text")

	outPath, outName, err := c.Convert(context.Background(), src, "notes.txt")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if outPath != src || outName != "notes.txt" {
		t.Errorf("pass-through changed the artifact: %q %q", outPath, outName)
	}
}

func TestConvertSpreadsheetWithoutParser(t *testing.T) {
	c := New(config.ConverterConfig{})
	src := writeTemp(t, "sheet.xlsx", "binary")

	if _, _, err := c.Convert(context.Background(), src, "sheet.xlsx"); err == nil {
		t.Error("spreadsheet conversion without the parse service must fail")
	}
}

func TestConvertRejectsBrokenPDF(t *testing.T) {
	c := New(config.ConverterConfig{})
	src := writeTemp(t, "broken.pdf", "this is not a pdf")

	if _, _, err := c.Convert(context.Background(), src, "broken.pdf"); err == nil {
		t.Error("a file that fails the PDF preflight must be rejected")
	}
}
