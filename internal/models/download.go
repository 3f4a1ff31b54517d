// Package models fetches the files the recognizer needs at runtime.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

// DownloadVocabulary fetches a CTC vocab.json from url into destPath,
// printing progress to out. An existing non-empty file is left alone. The
// download is written to a temp file and only moved into place once it
// parses as a vocabulary.
func DownloadVocabulary(ctx context.Context, url, destPath string, out io.Writer) error {
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Vocabulary already exists: %s\n", destPath)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating models dir: %w", err)
	}

	fmt.Fprintf(out, "  Downloading vocabulary...\n")
	fmt.Fprintf(out, "  URL: %s\n", url)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading vocabulary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  filepath.Base(destPath),
	}

	written, err := io.Copy(pw, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing vocabulary file: %w", err)
	}
	fmt.Fprintf(out, "\n  Downloaded %d bytes\n", written)

	vocab, err := transcribe.LoadVocabulary(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("validating vocabulary: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving vocabulary file: %w", err)
	}
	fmt.Fprintf(out, "  Vocabulary installed (%d tokens).\n", vocab.Len())
	return nil
}

// progressWriter wraps an io.Writer and prints download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f KB / %.1f KB (%.0f%%)",
			pw.label,
			float64(pw.written)/1024,
			float64(pw.total)/1024,
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f KB downloaded",
			pw.label,
			float64(pw.written)/1024)
	}
	return n, err
}
