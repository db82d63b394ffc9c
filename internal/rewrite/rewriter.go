package rewrite

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

type rule struct {
	selector Selector
	handler  ElementHandler
}

// Rewriter streams HTML from a source to a destination, applying its rules.
// A Rewriter is safe for concurrent use once all rules are registered.
type Rewriter struct {
	rules []rule
}

func New() *Rewriter {
	return &Rewriter{}
}

// On registers handler for elements matching selector. Handlers matching the
// same element run in registration order. It panics on an invalid selector;
// selectors are expected to be literals.
func (r *Rewriter) On(selector string, handler ElementHandler) *Rewriter {
	sel, err := ParseSelector(selector)
	if err != nil {
		panic(fmt.Sprintf("rewrite: %v", err))
	}

	r.rules = append(r.rules, rule{selector: sel, handler: handler})
	return r
}

// Rewrite copies the HTML document in src to dst, rewriting matched elements.
func (r *Rewriter) Rewrite(dst io.Writer, src io.Reader) error {
	w := bufio.NewWriter(dst)
	z := html.NewTokenizer(src)

	t := readToken(z)
	for {
		switch t.typ {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				w.Flush()
				return fmt.Errorf("tokenize html: %w", err)
			}
			return w.Flush()

		case html.StartTagToken, html.SelfClosingTagToken:
			el, matched := r.apply(t.tok)
			if !matched {
				w.Write(t.raw)
				break
			}

			if el.attrsChanged {
				w.WriteString(html.Token{Type: t.typ, Data: t.tok.Data, Attr: el.attrs}.String())
			} else {
				w.Write(t.raw)
			}

			if el.innerContent == nil || t.typ == html.SelfClosingTagToken || voidElements[t.tok.Data] {
				break
			}

			w.WriteString(html.EscapeString(*el.innerContent))
			closer, err := skipContent(z, t.tok.Data)
			if err != nil {
				if err == io.EOF {
					return w.Flush()
				}
				w.Flush()
				return fmt.Errorf("tokenize html: %w", err)
			}
			w.WriteString("</" + t.tok.Data + ">")

			// The element was closed implicitly; the token that closed it
			// still has to go through the rules.
			if closer != nil {
				t = *closer
				continue
			}

		default:
			w.Write(t.raw)
		}

		t = readToken(z)
	}
}

type token struct {
	typ html.TokenType
	raw []byte
	tok html.Token
}

// readToken advances z. Tags are parsed; raw bytes are copied first because
// Token lower-cases the tokenizer buffer in place.
func readToken(z *html.Tokenizer) token {
	t := token{typ: z.Next()}
	switch t.typ {
	case html.ErrorToken:
	case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
		t.raw = append([]byte(nil), z.Raw()...)
		t.tok = z.Token()
	default:
		t.raw = z.Raw()
	}
	return t
}

func (r *Rewriter) apply(tok html.Token) (*Element, bool) {
	var el *Element
	for _, rl := range r.rules {
		if !rl.selector.matches(tok.Data, tok.Attr) {
			continue
		}
		if el == nil {
			el = &Element{tag: tok.Data, attrs: append([]html.Attribute(nil), tok.Attr...)}
		}
		rl.handler.Element(el)
	}
	return el, el != nil
}

// skipContent discards the content of the element named tag. It consumes
// the element's own end tag and returns nil. When the element is closed
// implicitly, by an end tag of an enclosing element or by a start tag its
// end tag may be omitted before, that token is returned unwritten.
func skipContent(z *html.Tokenizer, tag string) (*token, error) {
	var open []string
	for {
		t := readToken(z)
		name := t.tok.Data

		switch t.typ {
		case html.ErrorToken:
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			if len(open) == 0 && impliedEnd[tag][name] {
				return &t, nil
			}
			if t.typ == html.StartTagToken && !voidElements[name] {
				open = append(open, name)
			}

		case html.EndTagToken:
			if i := lastIndex(open, name); i >= 0 {
				open = open[:i]
				continue
			}
			if name == tag {
				return nil, nil
			}
			return &t, nil
		}
	}
}

func lastIndex(open []string, name string) int {
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] == name {
			return i
		}
	}
	return -1
}

var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "details": true,
	"dialog": true, "div": true, "dl": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hgroup": true, "hr": true,
	"main": true, "menu": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "ul": true,
}

// impliedEnd lists, per element with an optional end tag, the start tags
// that close it.
var impliedEnd = map[string]map[string]bool{
	"p":      closesParagraph,
	"li":     {"li": true},
	"dt":     {"dt": true, "dd": true},
	"dd":     {"dt": true, "dd": true},
	"option": {"option": true, "optgroup": true},
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}
