package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/img-rotator/pkg/config"
	"github.com/Sriram-PR/img-rotator/pkg/stats"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

func sampleSnapshot(quota int) stats.Snapshot {
	return stats.Snapshot{
		Quota: quota,
		Sites: []stats.SiteCounts{
			{Site: "a.example", Counts: stats.Counts{Available: 5, Attempted: 4, Processed: 3, FailedFetch: 1}},
			{Site: "b.example"},
			{Site: "c.example", Counts: stats.Counts{Available: 3, Attempted: 2, Processed: 2}},
		},
		Total: stats.Counts{Available: 8, Attempted: 6, Processed: 5, FailedFetch: 1},
	}
}

func TestSuggestion(t *testing.T) {
	tests := []struct {
		name  string
		quota int
		want  string
	}{
		{"quota reached", 5, ""},
		{"short of quota", 6, "Only 5 of 6 images were processed. Add more sites to the site list or replace sites that yielded no usable images: b.example."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Suggestion(sampleSnapshot(tt.quota)))
		})
	}

	noWeak := stats.Snapshot{
		Quota: 10,
		Sites: []stats.SiteCounts{{Site: "a.example", Counts: stats.Counts{Available: 1, Attempted: 1, Processed: 1}}},
		Total: stats.Counts{Available: 1, Attempted: 1, Processed: 1},
	}
	assert.Equal(t, "Only 1 of 10 images were processed. Add more sites to the site list.", Suggestion(noWeak))
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.ReportFormatText, sampleSnapshot(6)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "site"))
	assert.Equal(t, []string{"a.example", "5", "4", "3", "1", "0", "0", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"TOTAL", "8", "6", "5", "1", "0", "0", "0"}, strings.Fields(lines[4]))
	assert.True(t, strings.HasPrefix(lines[5], "Only 5 of 6"))
}

func TestWrite_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.ReportFormatMarkdown, sampleSnapshot(5)))

	out := buf.String()
	assert.Contains(t, out, "| site | available |")
	assert.Contains(t, out, "| a.example | 5 | 4 | 3 | 1 | 0 | 0 | 0 |")
	assert.Contains(t, out, "| **total** | 8 |")
	assert.NotContains(t, out, "Only")
}

func TestWrite_HTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.ReportFormatHTML, sampleSnapshot(6)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>a.example</td>")
	assert.Contains(t, out, "<strong>total</strong>")
	assert.Contains(t, out, "<blockquote>")
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", sampleSnapshot(1))
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}
