// Package sanitize cleans feed and article markup with an allow-list over the
// HTML token stream. Nothing here depends on a rendering surface.
package sanitize

import (
	"html"
	"net/url"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedElements are removed together with everything inside them.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Noscript: true,
	atom.Form:     true,
	atom.Template: true,
	atom.Textarea: true,
	atom.Select:   true,
	atom.Button:   true,
	atom.Svg:      true,
	atom.Math:     true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Frameset: true,
	atom.Frame:    true,
	atom.Applet:   true,
}

// voidDropped are dropped void elements; they have no content to skip.
var voidDropped = map[atom.Atom]bool{
	atom.Input: true,
	atom.Link:  true,
	atom.Meta:  true,
	atom.Base:  true,
	atom.Param: true,
}

var allowedElements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Blockquote: true, atom.Br: true,
	atom.Caption: true, atom.Cite: true, atom.Code: true, atom.Dd: true, atom.Del: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Em: true, atom.Figcaption: true,
	atom.Figure: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Hr: true, atom.I: true, atom.Img: true,
	atom.Ins: true, atom.Kbd: true, atom.Li: true, atom.Mark: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Q: true, atom.S: true, atom.Small: true,
	atom.Span: true, atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Table: true,
	atom.Tbody: true, atom.Td: true, atom.Tfoot: true, atom.Th: true, atom.Thead: true,
	atom.Time: true, atom.Tr: true, atom.U: true, atom.Ul: true, atom.Picture: true,
	atom.Source: true, atom.Section: true, atom.Article: true, atom.Aside: true,
}

var voidElements = map[atom.Atom]bool{
	atom.Br: true, atom.Hr: true, atom.Img: true, atom.Source: true,
}

var allowedAttrs = map[string]bool{
	"href": true, "src": true, "srcset": true, "alt": true, "title": true,
	"width": true, "height": true, "colspan": true, "rowspan": true,
	"cite": true, "datetime": true, "lang": true, "dir": true,
}

var urlAttrs = map[string]bool{"href": true, "src": true, "cite": true}

// HTML returns raw with every element, attribute and URL outside the
// allow-list removed. Text content of unknown elements is kept; dropped
// elements such as script lose their content too.
func HTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	z := nethtml.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			// io.EOF or a tokenizer error; either way the output so far is safe.
			return strings.TrimSpace(b.String())
		case nethtml.TextToken:
			if skip == 0 {
				b.WriteString(html.EscapeString(string(z.Text())))
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			tok := z.Token()
			if droppedElements[tok.DataAtom] {
				if tt == nethtml.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 || voidDropped[tok.DataAtom] || !allowedElements[tok.DataAtom] {
				continue
			}
			writeStartTag(&b, tok)
		case nethtml.EndTagToken:
			tok := z.Token()
			if droppedElements[tok.DataAtom] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowedElements[tok.DataAtom] || voidElements[tok.DataAtom] {
				continue
			}
			b.WriteString("</")
			b.WriteString(tok.Data)
			b.WriteString(">")
		}
	}
}

func writeStartTag(b *strings.Builder, tok nethtml.Token) {
	b.WriteString("<")
	b.WriteString(tok.Data)
	for _, attr := range tok.Attr {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" || strings.HasPrefix(key, "on") || !allowedAttrs[key] {
			continue
		}
		val := attr.Val
		if urlAttrs[key] && !SafeURL(val) {
			continue
		}
		if key == "srcset" && !safeSrcset(val) {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(val))
		b.WriteString(`"`)
	}
	if tok.DataAtom == atom.A {
		b.WriteString(` rel="noopener noreferrer"`)
	}
	b.WriteString(">")
}

// SafeURL accepts http, https, mailto and relative references.
func SafeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	default:
		return false
	}
}

func safeSrcset(raw string) bool {
	for _, candidate := range strings.Split(raw, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		if !SafeURL(fields[0]) {
			return false
		}
	}
	return true
}
