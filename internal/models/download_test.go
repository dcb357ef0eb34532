package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProgressWriter(t *testing.T) {
	tmpDir := t.TempDir()
	f, err := os.Create(filepath.Join(tmpDir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	pw := &progressWriter{
		writer: f,
		total:  100,
		label:  "test",
	}

	data := make([]byte, 50)
	n, err := pw.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
}

func TestProgressWriterUnknownTotal(t *testing.T) {
	tmpDir := t.TempDir()
	f, err := os.Create(filepath.Join(tmpDir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	pw := &progressWriter{writer: f, total: -1, label: "test"}
	if _, err := pw.Write(make([]byte, 10)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if pw.written != 10 {
		t.Errorf("written = %d, want 10", pw.written)
	}
}
