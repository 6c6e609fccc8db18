// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package page is the DOM boundary of the chart loader: it parses the page
// template, resolves "#id" selectors and swaps element content.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoTarget is returned when a selector does not resolve to an element.
var ErrNoTarget = errors.New("page: selector target not found")

// DiagnosticClass is the CSS class of inline failure messages.
const DiagnosticClass = "chart-error"

// Page is a parsed HTML document. Mutations are serialised; each slot owns a
// disjoint subtree, so the lock is only held for the splice itself.
type Page struct {
	mu   sync.Mutex
	root *html.Node
}

// Parse parses a complete HTML document.
func Parse(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("page: parse: %w", err)
	}
	return &Page{root: root}, nil
}

// ParseBytes is Parse over an in-memory template.
func ParseBytes(b []byte) (*Page, error) {
	return Parse(bytes.NewReader(b))
}

// idFromSelector accepts only "#id" selectors.
func idFromSelector(selector string) (string, bool) {
	if len(selector) < 2 || selector[0] != '#' {
		return "", false
	}
	return selector[1:], true
}

func (p *Page) find(selector string) *html.Node {
	id, ok := idFromSelector(selector)
	if !ok {
		return nil
	}
	return findByID(p.root, id)
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Has reports whether selector resolves to an element at call time. Like
// querySelector, a duplicated id resolves to the first match in document order.
func (p *Page) Has(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.find(selector) != nil
}

// ReplaceHTML replaces the children of the target with the parsed fragment.
func (p *Page) ReplaceHTML(selector, fragment string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.find(selector)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNoTarget, selector)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), target)
	if err != nil {
		return fmt.Errorf("page: parse fragment for %s: %w", selector, err)
	}

	removeChildren(target)
	for _, n := range nodes {
		target.AppendChild(n)
	}
	return nil
}

// SetText replaces the children of the target with a single text node.
func (p *Page) SetText(selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.find(selector)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNoTarget, selector)
	}
	removeChildren(target)
	target.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

// ShowDiagnostic replaces the target content with an inline failure message.
func (p *Page) ShowDiagnostic(selector, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.find(selector)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNoTarget, selector)
	}

	para := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.P,
		Data:     "p",
		Attr: []html.Attribute{
			{Key: "class", Val: DiagnosticClass},
			{Key: "role", Val: "alert"},
		},
	}
	para.AppendChild(&html.Node{Type: html.TextNode, Data: message})

	removeChildren(target)
	target.AppendChild(para)
	return nil
}

// InnerHTML returns the serialised children of the target.
func (p *Page) InnerHTML(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.find(selector)
	if target == nil {
		return "", false
	}
	var buf bytes.Buffer
	for c := target.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", false
		}
	}
	return buf.String(), true
}

// Render writes the whole document.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return html.Render(w, p.root)
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
