package model

import "time"

// NoCTAFound is the primary CTA text recorded when a page has no button-like element.
const NoCTAFound = "No CTA Found"

// Headings holds the page's top-level heading texts in document order.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
}

// Image is a content image found on a page.
// Width and Height are zero when the renderer could not measure them.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TrustSignals records links to legal pages.
type TrustSignals struct {
	HasPrivacyPolicy bool `json:"has_privacy_policy"`
	HasTerms         bool `json:"has_terms"`
}

// ContactSignals records ways a visitor can reach the business.
type ContactSignals struct {
	Phone       bool   `json:"phone"`
	Email       bool   `json:"email"`
	WhatsApp    bool   `json:"whatsapp"`
	Address     bool   `json:"address"`
	AddressText string `json:"address_text,omitempty"`
}

// CTASignals summarises call-to-action elements.
type CTASignals struct {
	Count       int    `json:"count"`
	PrimaryText string `json:"primary_text"`
}

// ContentSignals summarises content depth and link structure.
type ContentSignals struct {
	HasBlog           bool `json:"has_blog"`
	HasTestimonials   bool `json:"has_testimonials"`
	InternalLinkCount int  `json:"internal_link_count"`
	ExternalLinkCount int  `json:"external_link_count"`
}

// CrawledPage is everything extracted from one fetched URL.
type CrawledPage struct {
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	MetaDescription string         `json:"meta_description"`
	Headings        Headings       `json:"headings"`
	Images          []Image        `json:"images"`
	LoadTimeMS      int64          `json:"load_time_ms"`
	RawTextContent  string         `json:"raw_text_content"`
	HasSSL          bool           `json:"has_ssl"`
	StructuredData  []any          `json:"structured_data"`
	Screenshot      []byte         `json:"screenshot,omitempty"`
	Trust           TrustSignals   `json:"trust_signals"`
	Contact         ContactSignals `json:"contact_signals"`
	SocialLinks     []string       `json:"social_links"`
	CTA             CTASignals     `json:"cta_signals"`
	Content         ContentSignals `json:"content_signals"`

	// Links are the same-origin URLs discovered on the page, in document order.
	Links []string `json:"links,omitempty"`
}

// RenderedImage is an <img> as seen by the renderer.
type RenderedImage struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RenderedDocument is the renderer-agnostic output of loading one URL.
type RenderedDocument struct {
	// URL is the address that was requested.
	URL string
	// FinalURL is the address after redirects. Empty when unknown.
	FinalURL   string
	StatusCode int
	HTML       string
	// Text is the visible text as laid out by a browser. Empty when the
	// renderer has no layout engine; the extractor then derives it from HTML.
	Text string
	// Images carries measured image sizes. Nil when the renderer cannot
	// measure; the extractor then reads <img> attributes.
	Images     []RenderedImage
	Screenshot []byte
	LoadTime   time.Duration
}
