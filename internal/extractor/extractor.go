
package extractor

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

const (
	// BlockAttr marks the page regions eligible for extraction. Its value
	// names the component kind.
	BlockAttr = "data-blog-component"
	// InnerAttr marks the body element inside a text component.
	InnerAttr = "data-blog-inner"
)

const (
	ComponentSubtitle = "subtitle"
	ComponentImage    = "image"
	ComponentText     = "text"
)

const imageAlt = "obit image"

// Block is the markup collected from one designated page region.
type Block struct {
	Component string
	Fragments []string
}

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract returns the combined markup of every designated block in page, in
// document order, joined by newlines. A page without blocks yields "".
func (e *Extractor) Extract(page string) (string, error) {
	blocks, err := e.Blocks(page)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, b := range blocks {
		parts = append(parts, b.Fragments...)
	}
	return strings.Join(parts, "\n"), nil
}

// Blocks locates every element carrying BlockAttr and renders its content.
// Components of an unknown kind produce a Block with no fragments.
func (e *Extractor) Blocks(page string) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var (
		blocks []Block
		rerr   error
	)
	doc.Find("[" + BlockAttr + "]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		kind := strings.TrimSpace(s.AttrOr(BlockAttr, ""))
		b := Block{Component: kind}
		switch kind {
		case ComponentSubtitle:
			if h3 := s.Find("h3").First(); h3.Length() > 0 {
				b.Fragments = append(b.Fragments, "<h3>"+html.EscapeString(strippedText(h3))+"</h3>")
			}
		case ComponentImage:
			if src, ok := s.Find("img").First().Attr("src"); ok && src != "" {
				b.Fragments = append(b.Fragments,
					fmt.Sprintf(`<img src="%s" alt="%s" />`, html.EscapeString(src), imageAlt))
			}
		case ComponentText:
			inner := s.Find(`div[` + InnerAttr + `="text"]`).First()
			if inner.Length() > 0 {
				markup, err := goquery.OuterHtml(inner)
				if err != nil {
					rerr = fmt.Errorf("render text block %d: %w", i, err)
					return false
				}
				b.Fragments = append(b.Fragments, markup)
			}
		}
		blocks = append(blocks, b)
		return true
	})
	if rerr != nil {
		return nil, rerr
	}
	return blocks, nil
}

// strippedText concatenates the trimmed text nodes under s.
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}
