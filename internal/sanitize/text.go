package sanitize

import (
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Blockquote: true,
	atom.Pre: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Tr: true, atom.Table: true, atom.Ul: true,
	atom.Ol: true, atom.Section: true, atom.Article: true, atom.Figure: true,
	atom.Figcaption: true, atom.Hr: true, atom.Dt: true, atom.Dd: true,
}

// Text strips all markup and collapses whitespace. Entities are decoded.
func Text(raw string) string {
	return strings.Join(Paragraphs(raw), " ")
}

// Paragraphs splits markup into plain-text blocks at block element
// boundaries. List items are prefixed with a bullet.
func Paragraphs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var (
		out  []string
		cur  strings.Builder
		skip int
	)
	flush := func() {
		text := strings.Join(strings.Fields(cur.String()), " ")
		cur.Reset()
		if text != "" && text != "•" {
			out = append(out, text)
		}
	}

	z := nethtml.NewTokenizer(strings.NewReader(raw))
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			flush()
			return out
		case nethtml.TextToken:
			if skip == 0 {
				cur.Write(z.Text())
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if droppedElements[a] {
				if tt == nethtml.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 {
				continue
			}
			if blockElements[a] {
				flush()
				if a == atom.Li {
					cur.WriteString("• ")
				}
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if droppedElements[a] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && blockElements[a] {
				flush()
			}
		}
	}
}
