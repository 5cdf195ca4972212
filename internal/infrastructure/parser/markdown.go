package parser

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	trailingWS = regexp.MustCompile(`[ \t]+\n`)
)

// MarkdownConverter sanitises HTML and renders it as Markdown.
type MarkdownConverter struct {
	policy *bluemonday.Policy
	text   *bluemonday.Policy
}

// NewMarkdownConverter keeps headings, lists, links, images, tables and code; scripts,
// styles and forms are dropped together with their content.
func NewMarkdownConverter() *MarkdownConverter {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("src", "alt", "title").OnElements("img")

	return &MarkdownConverter{
		policy: policy,
		text:   bluemonday.StrictPolicy(),
	}
}

// Convert renders rawHTML as Markdown. Relative links resolve against baseURL.
func (c *MarkdownConverter) Convert(rawHTML, baseURL string) (string, error) {
	clean := c.policy.Sanitize(rawHTML)
	if strings.TrimSpace(clean) == "" {
		return "", nil
	}

	clean, err := absolutize(clean, baseURL)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
	})
	converter.Use(plugin.GitHubFlavored())

	out, err := converter.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return collapse(out), nil
}

// VisibleText returns the whitespace-normalised text of an HTML fragment.
func (c *MarkdownConverter) VisibleText(rawHTML string) string {
	return strings.Join(strings.Fields(html.UnescapeString(c.text.Sanitize(rawHTML))), " ")
}

func collapse(markdown string) string {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = trailingWS.ReplaceAllString(markdown, "\n")
	markdown = blankRuns.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

// absolutize rewrites relative link and image targets against baseURL.
func absolutize(fragment, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return fragment, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	rewrite := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, sel *goquery.Selection) {
			value, ok := sel.Attr(attr)
			if !ok {
				return
			}
			ref, err := url.Parse(strings.TrimSpace(value))
			if err != nil || ref.IsAbs() {
				return
			}
			sel.SetAttr(attr, base.ResolveReference(ref).String())
		}
	}
	doc.Find("a[href]").Each(rewrite("href"))
	doc.Find("img[src]").Each(rewrite("src"))

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}
