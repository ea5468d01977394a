package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sampleTable struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (s sampleTable) Header() []string { return []string{"NAME", "COUNT"} }

func (s sampleTable) Rows() [][]string {
	return [][]string{{s.Name, "1"}, {"second, row", "2"}}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatText).FormatTo(buf, sampleTable{Name: "uploads"}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[1], "uploads") {
		t.Errorf("unexpected table output: %q", buf.String())
	}
	// Columns are aligned.
	if strings.Index(lines[0], "COUNT") != strings.Index(lines[1], "1") {
		t.Errorf("columns not aligned: %q", buf.String())
	}
}

func TestTextFormatter_NonTable(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, "plain"); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "plain\n" {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), "plain\n")
	}
}

func TestJSONFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatJSON).FormatTo(buf, sampleTable{Name: "events", Count: 3}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var decoded sampleTable
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Name != "events" || decoded.Count != 3 {
		t.Errorf("unexpected decoded value: %+v", decoded)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented JSON")
	}
}

func TestCSVFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewFormatter(FormatCSV).FormatTo(buf, sampleTable{Name: "uploads"}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "NAME,COUNT\nuploads,1\n\"second, row\",2\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}
}

func TestCSVFormatter_RejectsNonTable(t *testing.T) {
	if err := (&CSVFormatter{}).FormatTo(&bytes.Buffer{}, 42); err == nil {
		t.Error("expected error for non-tabular data")
	}
}
