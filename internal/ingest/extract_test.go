package ingest_test

import (
	"strings"
	"testing"

	"github.com/docuflow/server/internal/ingest"
)

func TestExtract_HTMLStripsMarkupAndScripts(t *testing.T) {
	html := []byte(`<html><head>
<style>body { color: red }</style>
<script>alert("nope")</script>
</head><body>
<h1>Release   Notes</h1>
<p>Version 2.1 fixes the   importer.</p>
</body></html>`)

	got, err := ingest.Extract("notes.html", html)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if got != "Release Notes Version 2.1 fixes the importer." {
		t.Errorf("unexpected extracted text: %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color") {
		t.Error("script/style content leaked into extracted text")
	}
}

func TestExtract_PlainTextPassesThrough(t *testing.T) {
	got, err := ingest.Extract("readme.md", []byte("# Title\n\nbody text"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "# Title\n\nbody text" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestExtract_UnsupportedExtensionRejected(t *testing.T) {
	if _, err := ingest.Extract("binary.pdf", []byte("%PDF")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
