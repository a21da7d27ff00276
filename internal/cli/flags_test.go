package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

func TestParseKeyValues(t *testing.T) {
	meta, err := parseKeyValues([]string{"ward=icu", " report_type = radiology ", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, domain.Metadata{"ward": "icu", "report_type": "radiology", "note": "a=b"}, meta)

	meta, err = parseKeyValues(nil)
	require.NoError(t, err)
	assert.Empty(t, meta)

	_, err = parseKeyValues([]string{"ward"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedInput)

	_, err = parseKeyValues([]string{"=icu"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedInput)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héll...", truncate("héllo world", 4))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
