package textclean

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text untouched",
			input:    "CRISPR screens in primary T cells",
			expected: "CRISPR screens in primary T cells",
		},
		{
			name:     "entities decoded and markup stripped",
			input:    "A &amp; B <b>bold</b>\n\n  text",
			expected: "A & B bold text",
		},
		{
			name:     "angle bracket entities",
			input:    "p &lt; 0.05 and x &gt; y",
			expected: "p < 0.05 and x > y",
		},
		{
			name:     "markup around comparison text",
			input:    "<i>p</i> &lt; 0.05 for the <b>treated</b> group",
			expected: "p < 0.05 for the treated group",
		},
		{
			name:     "quote entities",
			input:    "the &quot;gold standard&quot; isn&#39;t fixed",
			expected: `the "gold standard" isn't fixed`,
		},
		{
			name:     "mis-decoded right single quote",
			input:    "Alzheimerâ€™s disease",
			expected: "Alzheimer's disease",
		},
		{
			name:     "nested and unclosed tags",
			input:    "<i><sup>18</sup>F</i>-FDG uptake",
			expected: "18F-FDG uptake",
		},
		{
			name:     "whitespace collapsed and trimmed",
			input:    "  leading\ttabs\nand   runs  ",
			expected: "leading tabs and runs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.input)
			assert.Equal(t, tt.expected, got)

			// Cleaning is stable on already-clean text.
			assert.Equal(t, got, Clean(got))
		})
	}
}
