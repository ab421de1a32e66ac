package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"maestro/internal/plan"
)

// HTMLExtract turns markup into readable text: script/style/nav chrome is
// dropped, block elements become line breaks, runs of whitespace collapse.
//
// Parameters: "content" (required HTML).
// Output: the extracted text.
// Metadata: "input_length", "output_length", "title".
type HTMLExtract struct{}

// NewHTMLExtract creates the extraction tool.
func NewHTMLExtract() *HTMLExtract { return &HTMLExtract{} }

func (h *HTMLExtract) Name() string { return "html_extract" }

// skippedElements never contribute readable text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"nav":      true,
	"footer":   true,
	"iframe":   true,
	"svg":      true,
}

// blockElements force a line break around their content.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"article": true, "section": true, "blockquote": true, "pre": true,
}

func (h *HTMLExtract) Execute(ctx context.Context, params plan.Params) (Result, error) {
	content := plan.ParamString(params, "content")
	if content == "" {
		err := fmt.Errorf("html_extract: missing required parameter %q", "content")
		return failure(err), err
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		err = fmt.Errorf("html_extract: parse: %w", err)
		return failure(err), err
	}

	title := findTitle(doc)

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				sb.WriteByte('\n')
			}
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	text := collapseWhitespace(sb.String())
	return Result{
		Success: true,
		Output:  text,
		Metadata: map[string]string{
			"input_length":  strconv.Itoa(len(content)),
			"output_length": strconv.Itoa(len(text)),
			"title":         title,
		},
	}, nil
}

// findTitle returns the first <title> element's text, searched before the
// main walk because the walk skips <head> wholesale.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collapseWhitespace squeezes horizontal whitespace and drops blank lines.
func collapseWhitespace(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
