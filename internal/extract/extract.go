// Package extract pulls text out of fetched HTML documents for the CLI.
package extract

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"k8s.io/klog/v2"
)

// Errors
const (
	ErrFailedToParseDOM = "failed to parse DOM"
	ErrUnknownCharset   = "unknown charset"
	ErrFailedToDecode   = "failed to decode body"
)

// Decode returns a UTF-8 reader over body. An explicit label such as
// "windows-1252" wins; otherwise the encoding comes from contentType, a
// <meta> tag or the content itself.
func Decode(body io.Reader, label, contentType string) (io.Reader, error) {
	if label != "" {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", ErrUnknownCharset, label, err)
		}
		return transform.NewReader(body, enc.NewDecoder()), nil
	}
	r, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrFailedToDecode, err)
	}
	return r, nil
}

// Select returns one entry per element matching selector: its cleaned text,
// or its outer HTML when outer is set.
func Select(body io.Reader, selector string, outer bool) ([]string, error) {
	dom, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrFailedToParseDOM, err)
	}

	var out []string
	dom.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if !outer {
			out = append(out, CleanString(s.Text()))
			return
		}
		h, err := goquery.OuterHtml(s)
		if err != nil {
			klog.Warningf("extract: could not render match for %q: %v", selector, err)
			return
		}
		out = append(out, h)
	})
	klog.V(2).Infof("extract: %d matches for %q", len(out), selector)
	return out, nil
}

// Title returns the document title, or "" when there is none.
func Title(body io.Reader) (string, error) {
	dom, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrFailedToParseDOM, err)
	}
	return CleanString(dom.Find("head > title").First().Text()), nil
}

// Text strips all markup from an HTML document. Script and style contents are
// dropped and whitespace is collapsed.
func Text(body io.Reader) string {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return CleanString(html.UnescapeString(p.SanitizeReader(body).String()))
}

// CleanString collapses runs of whitespace to single spaces and trims the ends.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
