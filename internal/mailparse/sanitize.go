package mailparse

import (
	"strings"

	"golang.org/x/net/html"
)

// allowedTags are kept, with their attributes filtered.
var allowedTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "blockquote": true, "br": true,
	"caption": true, "code": true, "div": true, "em": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "i": true, "li": true, "ol": true, "p": true, "pre": true,
	"span": true, "strong": true, "sub": true, "sup": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "tr": true, "u": true, "ul": true,
}

// droppedWithContent are removed together with everything inside them.
var droppedWithContent = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true,
	"embed": true, "head": true, "title": true, "noscript": true,
	"template": true, "textarea": true, "select": true, "svg": true,
	"math": true, "noembed": true, "noframes": true, "xmp": true,
	"plaintext": true,
}

// rawTextTags switch the tokenizer to raw text even when written
// self-closing, so their content follows as text up to the end tag.
var rawTextTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "title": true,
	"textarea": true, "noscript": true, "noembed": true, "noframes": true,
	"xmp": true, "plaintext": true,
}

var voidTags = map[string]bool{"br": true, "hr": true}

// tagAttributes lists per-tag attributes on top of globalAttributes.
var tagAttributes = map[string]map[string]bool{
	"a": {"href": true, "title": true, "target": true, "rel": true},
}

var globalAttributes = map[string]bool{"class": true}

var allowedSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

// Sanitize reduces an HTML fragment to a fixed set of formatting tags and
// attributes. Disallowed tags are stripped and their text kept, except for
// script-like elements, which disappear with their content. The result never
// carries scripts, styles or event handlers, and sanitizing it again yields
// the same string.
func Sanitize(src string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))

	skipTag := ""
	skipDepth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()

		if skipDepth > 0 {
			switch {
			case tt == html.StartTagToken && tok.Data == skipTag:
				skipDepth++
			case tt == html.EndTagToken && tok.Data == skipTag:
				skipDepth--
			}
			continue
		}

		switch tt {
		case html.TextToken:
			b.WriteString(html.EscapeString(tok.Data))

		case html.StartTagToken, html.SelfClosingTagToken:
			if droppedWithContent[tok.Data] {
				if tt == html.StartTagToken || rawTextTags[tok.Data] {
					skipTag, skipDepth = tok.Data, 1
				}
				continue
			}
			if !allowedTags[tok.Data] {
				continue
			}
			writeStartTag(&b, tok)
			if tt == html.SelfClosingTagToken && !voidTags[tok.Data] {
				b.WriteString("</" + tok.Data + ">")
			}

		case html.EndTagToken:
			if allowedTags[tok.Data] && !voidTags[tok.Data] {
				b.WriteString("</" + tok.Data + ">")
			}
		}
	}

	return b.String()
}

func writeStartTag(b *strings.Builder, tok html.Token) {
	b.WriteString("<" + tok.Data)
	for _, attr := range tok.Attr {
		if attr.Namespace != "" || !attributeAllowed(tok.Data, attr.Key) {
			continue
		}
		if attr.Key == "href" && !safeURL(attr.Val) {
			continue
		}
		b.WriteString(" " + attr.Key + `="` + html.EscapeString(attr.Val) + `"`)
	}
	b.WriteString(">")
}

func attributeAllowed(tag, key string) bool {
	if globalAttributes[key] {
		return true
	}
	return tagAttributes[tag][key]
}

// safeURL accepts relative references and absolute URLs with a known scheme.
func safeURL(raw string) bool {
	var cleaned strings.Builder
	for _, r := range raw {
		// Browsers ignore whitespace and control characters inside schemes
		if r <= ' ' || r == 0x7f {
			continue
		}
		cleaned.WriteRune(r)
	}
	u := strings.ToLower(cleaned.String())

	end := strings.IndexAny(u, "/?#")
	if end < 0 {
		end = len(u)
	}
	colon := strings.IndexByte(u[:end], ':')
	if colon < 0 {
		return true
	}
	return allowedSchemes[u[:colon]]
}
