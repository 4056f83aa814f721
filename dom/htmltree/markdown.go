package htmltree

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// OuterHTML renders n and its subtree.
func (d *Doc) OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("htmltree: render: %w", err)
	}
	return buf.String(), nil
}

// Markdown renders the content of n as Markdown. Scripts, styles and event
// handlers are stripped first; relative links resolve against pageURL. When
// conversion yields nothing, the collapsed text content is returned.
func (d *Doc) Markdown(n *html.Node, pageURL string) (string, error) {
	raw, err := d.OuterHTML(n)
	if err != nil {
		return "", err
	}
	clean := sanitizer.Sanitize(raw)

	var opts []converter.ConvertOptionFunc
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	md, err := mdConverter.ConvertString(clean, opts...)
	if err != nil {
		return "", fmt.Errorf("htmltree: markdown: %w", err)
	}
	if md = strings.TrimSpace(md); md != "" {
		return md, nil
	}
	text, err := d.Text(n)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text), " "), nil
}
