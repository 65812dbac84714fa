package diagnostics

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the shortest readability text trusted as the main
// content; below it the whole document is converted instead.
const minReadableLength = 50

// newMarkdownConverter keeps tables intact: profile pages lay out their
// label/value pairs in them.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// readableMarkdown renders markup as Markdown for a human reviewer. The
// readability main-content pass is tried first; the full document is the
// fallback, so the result is never empty for a non-empty page.
func readableMarkdown(conv *converter.Converter, markup, pageURL string) (string, error) {
	body := markup
	var domain string
	if u, err := nurl.Parse(pageURL); err == nil {
		domain = u.Scheme + "://" + u.Host
		article, err := readability.FromReader(strings.NewReader(markup), u)
		switch {
		case err != nil:
			slog.Debug("readability failed, converting whole document", "url", pageURL, "error", err)
		case len(strings.TrimSpace(article.TextContent)) >= minReadableLength:
			body = article.Content
		}
	}
	return conv.ConvertString(body, converter.WithDomain(domain))
}
