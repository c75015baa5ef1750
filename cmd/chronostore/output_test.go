package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{format: "json", w: &buf}
	if err := p.json(map[string]int{"a": 1}); err != nil {
		t.Fatalf("json() error: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if got["a"] != 1 {
		t.Fatalf("got %v, want a=1", got)
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{format: "table", w: &buf}
	p.table([]string{"a", "b"}, [][]string{{"1", "2"}})
	out := buf.String()
	if !strings.Contains(out, "a") || !strings.Contains(out, "1") {
		t.Fatalf("table output missing expected content: %q", out)
	}
}

func TestPrinterKV(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{format: "table", w: &buf}
	p.kv([][2]string{{"key", "value"}})
	out := buf.String()
	if !strings.Contains(out, "key:") || !strings.Contains(out, "value") {
		t.Fatalf("kv output missing expected content: %q", out)
	}
}

func TestOutputFormatDefaultsToTable(t *testing.T) {
	if got := outputFormat(""); got != "table" {
		t.Fatalf("outputFormat(\"\") = %q, want table", got)
	}
	if got := outputFormat("json"); got != "json" {
		t.Fatalf("outputFormat(\"json\") = %q, want json", got)
	}
}
