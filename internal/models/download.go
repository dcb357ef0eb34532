// Package models downloads whisper ggml model files for the local
// transcription backend.
package models

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/voicememo/voicememo/internal/config"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// variants are the models offered by the interactive download flow.
var variants = []struct {
	name string
	file string
	desc string
}{
	{"tiny.en", "ggml-tiny.en.bin", "~75 MB, fastest"},
	{"base.en", "ggml-base.en.bin", "~142 MB, better accuracy"},
}

// DownloadWhisper downloads the named whisper ggml model file to the
// default models directory. It shows download progress to stdout and is
// a no-op when the file already exists.
func DownloadWhisper(file string) error {
	modelsDir := config.DefaultModelsDir()
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return fmt.Errorf("creating models dir: %w", err)
	}

	destPath := filepath.Join(modelsDir, file)

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Printf("  Model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return nil
	}

	url := modelBaseURL + file
	fmt.Printf("  Downloading whisper model from HuggingFace...\n")
	fmt.Printf("  URL: %s\n", url)
	fmt.Printf("  Destination: %s\n", destPath)

	resp, err := http.Get(url) //nolint:gosec // URL prefix is a compile-time constant
	if err != nil {
		return fmt.Errorf("downloading whisper model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	pr := &progressWriter{
		writer: f,
		total:  resp.ContentLength,
		label:  file,
	}

	written, err := io.Copy(pr, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing model file: %w", err)
	}

	fmt.Printf("\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving model file: %w", err)
	}

	return nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Printf("\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Printf("\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}

// RunInteractiveDownload prompts for a model variant and downloads it.
func RunInteractiveDownload() error {
	fmt.Println("=== Model Download ===")
	fmt.Println()
	fmt.Printf("Models will be downloaded to: %s\n", config.DefaultModelsDir())
	fmt.Println()
	fmt.Println("Which model would you like to download?")
	for i, v := range variants {
		fmt.Printf("  [%d] %s (%s)\n", i+1, v.name, v.desc)
	}
	fmt.Println()
	fmt.Print("Choice [1/2]: ")

	var choice string
	fmt.Scanln(&choice)
	choice = strings.TrimSpace(choice)
	fmt.Println()

	for i, v := range variants {
		if choice == fmt.Sprintf("%d", i+1) {
			fmt.Printf("Downloading %s model...\n", v.name)
			return DownloadWhisper(v.file)
		}
	}
	return fmt.Errorf("invalid choice: %q (expected 1 or 2)", choice)
}
