// Package extract turns a rendered page into a CrawledPage. Every heuristic
// is a named pure function so it can be tested without a browser.
package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/site-audit/internal/model"
)

// MinImageSide is the smallest measured width or height of a content image.
// Smaller images are icons, spacers or tracking pixels.
const MinImageSide = 50

const ctaSelector = `button, a.btn, a[class*="button"], a[class*="cta"]`

// Extract builds the CrawledPage for a rendered document.
func Extract(doc model.RenderedDocument) model.CrawledPage {
	page := model.CrawledPage{
		URL:        doc.URL,
		LoadTimeMS: doc.LoadTime.Milliseconds(),
		HasSSL:     servedOverTLS(doc),
		Screenshot: doc.Screenshot,
		CTA:        model.CTASignals{PrimaryText: model.NoCTAFound},
	}

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		zap.L().Debug("extract: parse html", zap.String("url", doc.URL), zap.Error(err))
		return page
	}

	base := resolveBase(doc, dom)

	page.Title = collapse(dom.Find("head > title").First().Text())
	if page.Title == "" {
		page.Title = collapse(dom.Find("title").First().Text())
	}
	page.MetaDescription = metaDescription(dom)
	page.Headings = model.Headings{
		H1: headingTexts(dom, "h1"),
		H2: headingTexts(dom, "h2"),
	}

	text := doc.Text
	if strings.TrimSpace(text) == "" {
		text = VisibleText(dom)
	}
	page.RawTextContent = norm.NFKC.String(text)

	if doc.Images != nil {
		page.Images = measuredImages(base, doc.Images)
	} else {
		page.Images = attributeImages(base, dom)
	}

	hrefs := dom.Find("a[href]").Map(func(_ int, s *goquery.Selection) string {
		href, _ := s.Attr("href")
		return strings.TrimSpace(href)
	})
	links := ClassifyLinks(base, hrefs)
	page.Links = links.SameSite
	page.Content = model.ContentSignals{
		HasBlog:           HasBlog(links.SameSite),
		HasTestimonials:   HasTestimonials(page.RawTextContent, links.SameSite),
		InternalLinkCount: links.InternalCount,
		ExternalLinkCount: links.ExternalCount,
	}
	page.Trust = TrustFromLinks(links.SameSite)

	bodyMarkup, _ := dom.Find("body").Html()
	addr, hasAddr := DetectAddress(page.RawTextContent)
	page.Contact = model.ContactSignals{
		Phone:       DetectPhone(page.RawTextContent, hrefs),
		Email:       DetectEmail(page.RawTextContent, hrefs),
		WhatsApp:    DetectWhatsApp(bodyMarkup, page.RawTextContent),
		Address:     hasAddr,
		AddressText: addr,
	}
	page.SocialLinks = DetectSocialLinks(bodyMarkup)

	ctas := CTATexts(dom.Find(ctaSelector).Map(func(_ int, s *goquery.Selection) string {
		return collapse(s.Text())
	}))
	page.CTA = model.CTASignals{Count: len(ctas), PrimaryText: PrimaryCTA(ctas)}

	page.StructuredData = ParseStructuredData(dom.Find(`script[type="application/ld+json"]`).Map(
		func(_ int, s *goquery.Selection) string { return s.Text() },
	))

	return page
}

// servedOverTLS reports whether the page ended up on https, following
// redirects when the renderer reports them.
func servedOverTLS(doc model.RenderedDocument) bool {
	raw := doc.URL
	if doc.FinalURL != "" {
		raw = doc.FinalURL
	}
	return strings.HasPrefix(strings.ToLower(raw), "https://")
}

// resolveBase picks the URL relative links resolve against: <base href>, then
// the post-redirect URL, then the requested URL.
func resolveBase(doc model.RenderedDocument, dom *goquery.Document) *url.URL {
	raw := doc.URL
	if doc.FinalURL != "" {
		raw = doc.FinalURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		base = &url.URL{}
	}
	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return base
}

func metaDescription(dom *goquery.Document) string {
	var desc string
	dom.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if name, _ := s.Attr("name"); strings.EqualFold(strings.TrimSpace(name), "description") {
			desc, _ = s.Attr("content")
			return false
		}
		return true
	})
	return strings.TrimSpace(desc)
}

func headingTexts(dom *goquery.Document, tag string) []string {
	out := dom.Find(tag).Map(func(_ int, s *goquery.Selection) string {
		return collapse(s.Text())
	})
	if out == nil {
		return []string{}
	}
	return out
}

func measuredImages(base *url.URL, imgs []model.RenderedImage) []model.Image {
	out := make([]model.Image, 0, len(imgs))
	for _, img := range imgs {
		src := absolute(base, img.Src)
		if src == "" || tooSmall(img.Width, img.Height) {
			continue
		}
		out = append(out, model.Image{Src: src, Alt: strings.TrimSpace(img.Alt), Width: img.Width, Height: img.Height})
	}
	return out
}

func attributeImages(base *url.URL, dom *goquery.Document) []model.Image {
	out := make([]model.Image, 0)
	dom.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if strings.TrimSpace(src) == "" {
			src, _ = s.Attr("data-src")
		}
		src = absolute(base, src)
		w, h := dimension(s, "width"), dimension(s, "height")
		if src == "" || tooSmall(w, h) {
			return
		}
		alt, _ := s.Attr("alt")
		out = append(out, model.Image{Src: src, Alt: strings.TrimSpace(alt), Width: w, Height: h})
	})
	return out
}

// tooSmall treats a zero side as unmeasured.
func tooSmall(w, h int) bool {
	return (w > 0 && w <= MinImageSide) || (h > 0 && h <= MinImageSide)
}

func dimension(s *goquery.Selection, attr string) int {
	v, _ := s.Attr(attr)
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func absolute(base *url.URL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "data:") {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// skipText lists elements whose text is never visible.
var skipText = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true,
	"template": true, "svg": true, "iframe": true, "object": true,
}

// blockElements start a new line in visible text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true, "button": true,
}

// VisibleText approximates a browser's innerText for the document body:
// hidden elements are skipped and block elements break lines.
func VisibleText(dom *goquery.Document) string {
	root := dom.Find("body")
	if root.Length() == 0 {
		root = dom.Selection
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipText[n.Data] {
				return
			}
			if _, hidden := attr(n, "hidden"); hidden {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range root.Nodes {
		walk(n)
	}

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = collapse(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
