package richtext

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	wsRun          = regexp.MustCompile(`[ \t\r\n\f]+`)
	trailingSpace  = regexp.MustCompile(`[ \t]+\n`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// ToMarkdown converts editor HTML to an approximate Markdown rendition:
// ATX headings, fenced code, "-" bullets, "_" emphasis.
func ToMarkdown(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("richtext: parse html: %w", err)
	}
	c := &converter{}
	c.walk(doc)
	return c.finish(), nil
}

type listState struct {
	ordered bool
	n       int
}

type converter struct {
	buf   []byte
	lists []listState
	inPre int
}

func (c *converter) write(s string) {
	c.buf = append(c.buf, s...)
}

func (c *converter) atLineStart() bool {
	return len(c.buf) == 0 || c.buf[len(c.buf)-1] == '\n'
}

func (c *converter) newline() {
	if !c.atLineStart() {
		c.write("\n")
	}
}

func (c *converter) blankLine() {
	if len(c.buf) == 0 {
		return
	}
	c.newline()
	if !bytes.HasSuffix(c.buf, []byte("\n\n")) {
		c.write("\n")
	}
}

func (c *converter) children(n *html.Node) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.walk(ch)
	}
}

// wrap surrounds the node's rendered children with delim, dropping the
// delimiters entirely when the children rendered nothing.
func (c *converter) wrap(n *html.Node, delim string) {
	start := len(c.buf)
	c.write(delim)
	c.children(n)
	if len(c.buf) == start+len(delim) {
		c.buf = c.buf[:start]
		return
	}
	c.write(delim)
}

func (c *converter) text(s string) {
	if c.inPre > 0 {
		c.write(s)
		return
	}
	s = wsRun.ReplaceAllString(s, " ")
	if c.atLineStart() {
		s = strings.TrimLeft(s, " ")
	}
	if s != "" {
		c.write(s)
	}
}

func (c *converter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		c.text(n.Data)
		return
	case html.ElementNode:
	default:
		c.children(n)
		return
	}

	switch n.Data {
	case "head", "script", "style", "title":
		return
	case "br":
		c.write("\n")
	case "hr":
		c.blankLine()
		c.write("---")
		c.blankLine()
	case "p":
		c.blankLine()
		c.children(n)
		c.blankLine()
	case "div", "section", "article", "header", "footer", "main":
		c.newline()
		c.children(n)
		c.newline()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		c.blankLine()
		c.write(strings.Repeat("#", int(n.Data[1]-'0')) + " ")
		c.children(n)
		c.blankLine()
	case "strong", "b":
		c.wrap(n, "**")
	case "em", "i":
		c.wrap(n, "_")
	case "s", "del", "strike":
		c.wrap(n, "~~")
	case "code":
		if c.inPre > 0 {
			c.children(n)
		} else {
			c.wrap(n, "`")
		}
	case "pre":
		c.blankLine()
		c.write("```\n")
		c.inPre++
		c.children(n)
		c.inPre--
		c.newline()
		c.write("```")
		c.blankLine()
	case "a":
		href := attr(n, "href")
		if href == "" {
			c.children(n)
			return
		}
		c.write("[")
		c.children(n)
		c.write("](" + href + ")")
	case "img":
		c.write("![" + attr(n, "alt") + "](" + attr(n, "src") + ")")
	case "ul", "ol":
		if len(c.lists) == 0 {
			c.blankLine()
		} else {
			c.newline()
		}
		c.lists = append(c.lists, listState{ordered: n.Data == "ol"})
		c.children(n)
		c.lists = c.lists[:len(c.lists)-1]
		if len(c.lists) == 0 {
			c.blankLine()
		} else {
			c.newline()
		}
	case "li":
		c.newline()
		marker := "- "
		depth := 0
		if len(c.lists) > 0 {
			depth = len(c.lists) - 1
			top := &c.lists[len(c.lists)-1]
			if top.ordered {
				top.n++
				marker = fmt.Sprintf("%d. ", top.n)
			}
		}
		c.write(strings.Repeat("  ", depth) + marker)
		c.children(n)
		c.newline()
	case "blockquote":
		sub := &converter{}
		sub.children(n)
		c.blankLine()
		for _, line := range strings.Split(sub.finish(), "\n") {
			c.write(strings.TrimRight("> "+line, " ") + "\n")
		}
		c.blankLine()
	default:
		c.children(n)
	}
}

func (c *converter) finish() string {
	s := string(c.buf)
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = excessNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
