// Package transfer moves matched candidate payloads into the library. A
// payload is first written to a temp file next to the destination and only
// renamed into place once complete, so readers never observe a partial file.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// unsafeChars covers characters that break on common filesystems or shells.
var unsafeChars = regexp.MustCompile(`[?!*<>:/\\|&-]`)

// Executor fetches a remote payload and publishes it atomically.
type Executor interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// HTTPExecutor downloads payloads over HTTP.
type HTTPExecutor struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPExecutor creates an executor with a bounded per-transfer timeout.
func NewHTTPExecutor(timeout time.Duration, logger zerolog.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "transfer").Logger(),
	}
}

// Fetch streams the payload at url to destPath. The stream lands in a temp
// file first; destPath appears only on success.
func (e *HTTPExecutor) Fetch(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tempPath := destPath + ".castarr-" + uuid.NewString()[:8] + ".partial"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer failed: status %d", resp.StatusCode)
	}

	written, err := streamToTemp(resp.Body, tempPath)
	if err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := MovePublished(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return err
	}

	e.logger.Info().
		Str("dest", destPath).
		Int64("bytes", written).
		Msg("transfer completed")
	return nil
}

func streamToTemp(src io.Reader, tempPath string) (int64, error) {
	f, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		return written, fmt.Errorf("transfer interrupted: %w", err)
	}

	if err := f.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize temp file: %w", err)
	}
	return written, nil
}

// MovePublished renames a completed temp file into place. When the rename
// crosses filesystems it falls back to copy-then-delete.
func MovePublished(tempPath, destPath string) error {
	if err := os.Rename(tempPath, destPath); err == nil {
		return nil
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to copy across filesystems: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to finalize destination: %w", err)
	}

	return os.Remove(tempPath)
}

// SanitizeFilename strips characters that are unsafe in library filenames
// and collapses the resulting whitespace.
func SanitizeFilename(name string) string {
	cleaned := unsafeChars.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}
