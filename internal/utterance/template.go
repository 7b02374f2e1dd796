// Package utterance parses the bracketed directive language embedded in authored
// dialogue text and renders it into typed segments for display.
package utterance

import (
	"strings"
	"unicode"
)

const escapeChar = '$'

// Token is one element of a parsed template: either literal text or a directive.
type Token struct {
	Text    string
	Keyword string
	Args    []string
	body    string
}

// IsDirective reports whether the token is a bracketed directive.
func (t Token) IsDirective() bool {
	return t.Keyword != ""
}

// Arg returns the i-th argument or "" when absent.
func (t Token) Arg(i int) string {
	if i < 0 || i >= len(t.Args) {
		return ""
	}
	return t.Args[i]
}

// Payload is the directive content after the keyword, or the whole body for
// bare directives.
func (t Token) Payload() string {
	if len(t.Args) == 0 {
		return t.Keyword
	}
	return strings.Join(t.Args, "|")
}

// String returns the token in source form.
func (t Token) String() string {
	if !t.IsDirective() {
		return strings.ReplaceAll(t.Text, "[", string(escapeChar)+"[")
	}
	return "[" + t.body + "]"
}

// Template is a parsed utterance.
type Template []Token

// Parse tokenizes s in a single left-to-right sweep. It never fails: an escaped
// bracket ("$[") becomes literal text, and a directive whose closing bracket is
// missing, or appears only after the next "[", is closed at the next whitespace.
func Parse(s string) Template {
	var (
		tpl Template
		buf strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			tpl = append(tpl, Token{Text: buf.String()})
			buf.Reset()
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		if c == escapeChar && i+1 < len(s) && s[i+1] == '[' {
			buf.WriteByte('[')
			i += 2
			continue
		}
		if c != '[' {
			buf.WriteByte(c)
			i++
			continue
		}

		rest := s[i+1:]
		end := strings.IndexByte(rest, ']')
		next := strings.IndexByte(rest, '[')
		var body string
		if end >= 0 && (next < 0 || end < next) {
			body = rest[:end]
			i += end + 2
		} else {
			limit := len(rest)
			if next >= 0 {
				limit = next
			}
			ws := strings.IndexFunc(rest[:limit], unicode.IsSpace)
			if ws < 0 {
				ws = limit
			}
			body = rest[:ws]
			i += ws + 1
		}

		flush()
		if tok, ok := parseDirective(body); ok {
			tpl = append(tpl, tok)
		}
	}
	flush()
	return tpl
}

func parseDirective(body string) (Token, bool) {
	if strings.TrimSpace(body) == "" {
		return Token{}, false
	}
	tok := Token{body: body}
	if idx := strings.IndexByte(body, '|'); idx >= 0 {
		tok.Keyword = body[:idx]
		tok.Args = strings.Split(body[idx+1:], "|")
	} else if idx := strings.IndexFunc(body, unicode.IsSpace); idx >= 0 {
		tok.Keyword = body[:idx]
		tok.Args = strings.Fields(body[idx+1:])
	} else {
		tok.Keyword = body
	}
	if tok.Keyword == "" {
		// "[|x]" has no keyword; keep the payload readable.
		return Token{Text: strings.Join(tok.Args, "|")}, true
	}
	return tok, true
}

// String reassembles the template into source form. Parse(t.String()) yields an
// equivalent template.
func (t Template) String() string {
	var b strings.Builder
	for _, tok := range t {
		b.WriteString(tok.String())
	}
	return b.String()
}

// Empty reports whether the template holds no directives and only whitespace.
func (t Template) Empty() bool {
	for _, tok := range t {
		if tok.IsDirective() || strings.TrimSpace(tok.Text) != "" {
			return false
		}
	}
	return true
}

// Has reports whether a directive with the keyword is present.
func (t Template) Has(keyword string) bool {
	_, ok := t.Find(keyword)
	return ok
}

// Find returns the first directive with the keyword.
func (t Template) Find(keyword string) (Token, bool) {
	for _, tok := range t {
		if tok.Keyword == keyword {
			return tok, true
		}
	}
	return Token{}, false
}

// Count returns the number of directives with the keyword.
func (t Template) Count(keyword string) int {
	n := 0
	for _, tok := range t {
		if tok.Keyword == keyword {
			n++
		}
	}
	return n
}

// Is reports whether the template consists of the keyword directive alone,
// ignoring surrounding whitespace.
func (t Template) Is(keyword string) bool {
	found := false
	for _, tok := range t {
		switch {
		case tok.Keyword == keyword && !found:
			found = true
		case !tok.IsDirective() && strings.TrimSpace(tok.Text) == "":
		default:
			return false
		}
	}
	return found
}

// HasPrefix reports whether any directive keyword starts with prefix.
func (t Template) HasPrefix(prefix string) bool {
	for _, tok := range t {
		if tok.IsDirective() && strings.HasPrefix(tok.Keyword, prefix) {
			return true
		}
	}
	return false
}

// Truncate drops the first keyword directive and everything after it.
func (t Template) Truncate(keyword string) Template {
	for i, tok := range t {
		if tok.Keyword == keyword {
			return append(Template(nil), t[:i]...)
		}
	}
	return t
}

// Remove drops every keyword directive.
func (t Template) Remove(keyword string) Template {
	out := make(Template, 0, len(t))
	for _, tok := range t {
		if tok.Keyword != keyword {
			out = append(out, tok)
		}
	}
	return out
}

// Expand replaces every keyword directive with the source text returned by fn.
// The result is re-parsed, so fn may return further directives such as links.
func (t Template) Expand(keyword string, fn func(Token) string) Template {
	if !t.Has(keyword) {
		return t
	}
	var b strings.Builder
	for _, tok := range t {
		if tok.Keyword == keyword {
			b.WriteString(fn(tok))
			continue
		}
		b.WriteString(tok.String())
	}
	return Parse(b.String())
}

// ExpandPrefix is Expand for every directive whose keyword starts with prefix.
func (t Template) ExpandPrefix(prefix string, fn func(Token) string) Template {
	if !t.HasPrefix(prefix) {
		return t
	}
	var b strings.Builder
	for _, tok := range t {
		if tok.IsDirective() && strings.HasPrefix(tok.Keyword, prefix) {
			b.WriteString(fn(tok))
			continue
		}
		b.WriteString(tok.String())
	}
	return Parse(b.String())
}

// Escape makes s safe to splice into a template as literal text.
func Escape(s string) string {
	return strings.ReplaceAll(s, "[", string(escapeChar)+"[")
}
