package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainTextStripsMarkdown(t *testing.T) {
	markdown := "# Heading\n\nplain paragraph\n\n```go\nfunc main() {}\n```"
	out := PlainText(markdown)
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "```")
	require.Contains(t, out, "Heading")
	require.Contains(t, out, "plain paragraph")
	require.Contains(t, out, "func main() {}")
}

func TestPlainTextPlainInputUnchanged(t *testing.T) {
	require.Equal(t, "just a sentence", PlainText("just a sentence"))
}

func TestBuildEmbedInputCombinesTitleAndContent(t *testing.T) {
	out := BuildEmbedInput("my title", "some content")
	require.Equal(t, "my title\n\nsome content", out)
}

func TestBuildEmbedInputTruncatesOnRuneBoundary(t *testing.T) {
	content := strings.Repeat("日", embedInputLimit)
	out := BuildEmbedInput("t", content)
	require.LessOrEqual(t, len(out), embedInputLimit)
	require.True(t, strings.HasPrefix(out, "t\n\n"))
	for _, r := range out {
		if r != 't' && r != '\n' {
			require.Equal(t, '日', r)
		}
	}
}
