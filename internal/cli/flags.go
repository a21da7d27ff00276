package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

// parseKeyValues turns repeated key=value flags into metadata.
func parseKeyValues(pairs []string) (domain.Metadata, error) {
	meta := domain.Metadata{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", domain.ErrUnsupportedInput, pair)
		}
		meta[k] = strings.TrimSpace(v)
	}
	return meta, nil
}

func topK(flag int) int {
	if flag > 0 {
		return flag
	}
	return GetConfig().Retrieve.TopK
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
