package extract

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/model"
)

const samplePage = `<html><head>
<title>  Acme
  Plumbing </title>
<meta name="Description" content=" Fast plumbing ">
<base href="https://acme.com/sub/">
<script type="application/ld+json">{"@type":"LocalBusiness","name":"Acme"}</script>
<script type="application/ld+json">   </script>
<script type="application/ld+json">{broken</script>
</head>
<body>
<h1>Welcome</h1><h1></h1><h2>Services</h2>
<p>Call us on +1 (555) 123-4567 today.</p>
<img src="hero.jpg" alt=" Hero " width="800" height="600">
<img src="pixel.gif" width="1" height="1">
<img src="logo.png">
<img src="">
<a href="/privacy">Privacy</a>
<a href="terms#top">Terms</a>
<a href="/privacy">Privacy again</a>
<a href="https://other.com/x">Partner</a>
<a href="mailto:hello@acme.com">Mail</a>
<a href="https://facebook.com/acme">Facebook</a>
<button>Get a Quote</button>
<a class="btn">Learn more</a>
<script>var hidden = "not visible";</script>
</body></html>`

func TestExtract_SamplePage(t *testing.T) {
	page := Extract(model.RenderedDocument{
		URL:      "https://acme.com/",
		HTML:     samplePage,
		LoadTime: 1500 * time.Millisecond,
	})

	assert.Equal(t, "https://acme.com/", page.URL)
	assert.Equal(t, "Acme Plumbing", page.Title)
	assert.Equal(t, "Fast plumbing", page.MetaDescription)
	assert.Equal(t, []string{"Welcome", ""}, page.Headings.H1)
	assert.Equal(t, []string{"Services"}, page.Headings.H2)
	assert.Equal(t, int64(1500), page.LoadTimeMS)
	assert.True(t, page.HasSSL)

	require.Len(t, page.Images, 2)
	assert.Equal(t, model.Image{Src: "https://acme.com/sub/hero.jpg", Alt: "Hero", Width: 800, Height: 600}, page.Images[0])
	assert.Equal(t, "https://acme.com/sub/logo.png", page.Images[1].Src)

	assert.Equal(t, []string{"https://acme.com/privacy", "https://acme.com/sub/terms"}, page.Links)
	assert.Equal(t, 3, page.Content.InternalLinkCount)
	assert.Equal(t, 2, page.Content.ExternalLinkCount)
	assert.True(t, page.Trust.HasPrivacyPolicy)
	assert.True(t, page.Trust.HasTerms)

	assert.True(t, page.Contact.Phone)
	assert.True(t, page.Contact.Email)
	assert.False(t, page.Contact.WhatsApp)
	assert.Equal(t, []string{"facebook.com"}, page.SocialLinks)

	assert.Equal(t, 2, page.CTA.Count)
	assert.Equal(t, "Get a Quote", page.CTA.PrimaryText)

	require.Len(t, page.StructuredData, 1)
	obj, ok := page.StructuredData[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "LocalBusiness", obj["@type"])

	assert.Contains(t, page.RawTextContent, "Call us on")
	assert.NotContains(t, page.RawTextContent, "not visible")
}

func TestExtract_EmptyDocument(t *testing.T) {
	page := Extract(model.RenderedDocument{URL: "http://bare.example/"})

	assert.Empty(t, page.Title)
	assert.Empty(t, page.Headings.H1)
	assert.NotNil(t, page.Headings.H1)
	assert.Empty(t, page.Images)
	assert.Empty(t, page.StructuredData)
	assert.False(t, page.HasSSL)
	assert.Equal(t, model.NoCTAFound, page.CTA.PrimaryText)
	assert.Zero(t, page.CTA.Count)
}

func TestExtract_SSLFollowsRedirect(t *testing.T) {
	upgraded := Extract(model.RenderedDocument{URL: "http://acme.com/about", FinalURL: "https://acme.com/about"})
	assert.Equal(t, "http://acme.com/about", upgraded.URL)
	assert.True(t, upgraded.HasSSL)

	downgraded := Extract(model.RenderedDocument{URL: "https://acme.com/", FinalURL: "http://acme.com/"})
	assert.False(t, downgraded.HasSSL)
}

func TestExtract_RendererSuppliedTextAndImages(t *testing.T) {
	page := Extract(model.RenderedDocument{
		URL:      "https://acme.com/about",
		FinalURL: "https://www.acme.com/about-us",
		HTML:     `<html><body><img src="ignored.png" width="900"><a href="team">Team</a></body></html>`,
		Text:     "ﬁne print",
		Images: []model.RenderedImage{
			{Src: "/a.png", Alt: "A", Width: 400, Height: 300},
			{Src: "/icon.svg", Width: 24, Height: 24},
		},
	})

	assert.Equal(t, "fine print", page.RawTextContent)
	require.Len(t, page.Images, 1)
	assert.Equal(t, "https://www.acme.com/a.png", page.Images[0].Src)
	assert.Equal(t, []string{"https://www.acme.com/team"}, page.Links)
}

func TestVisibleText(t *testing.T) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><title>T</title></head><body>
		<div>Hello <b>world</b></div><p>Second</p>
		<script>x()</script><style>p{}</style><div hidden>secret</div>
		</body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond", VisibleText(dom))
}

func TestTooSmall(t *testing.T) {
	tests := []struct {
		w, h int
		want bool
	}{
		{0, 0, false},
		{800, 600, false},
		{50, 400, true},
		{400, 50, true},
		{51, 51, false},
		{0, 10, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tooSmall(tt.w, tt.h), "%dx%d", tt.w, tt.h)
	}
}

func TestDetectAddress(t *testing.T) {
	addr, ok := DetectAddress("Visit us at 12 Marina\n\tRoad, Lagos Island for a chat")
	require.True(t, ok)
	assert.Contains(t, addr, "Marina Road")
	assert.NotContains(t, addr, "\n")

	_, ok = DetectAddress("We make great software.")
	assert.False(t, ok)
}

func TestDetectContacts(t *testing.T) {
	assert.True(t, DetectPhone("Call 0803 123 4567", nil))
	assert.True(t, DetectPhone("", []string{"TEL:+15551234"}))
	assert.False(t, DetectPhone("Founded 2019", nil))

	assert.True(t, DetectEmail("write to info@acme.com", nil))
	assert.True(t, DetectEmail("", []string{"mailto:x"}))
	assert.False(t, DetectEmail("no contact", []string{"/contact"}))

	assert.True(t, DetectWhatsApp(`<a href="https://wa.me/123">chat</a>`, ""))
	assert.True(t, DetectWhatsApp("", "Message us on WhatsApp"))
	assert.False(t, DetectWhatsApp("<p>hi</p>", "hi"))
}

func TestDetectSocialLinks(t *testing.T) {
	got := DetectSocialLinks(`<a href="https://linkedin.com/company/x"></a><a href="https://www.instagram.com/x"></a>`)
	assert.Equal(t, []string{"instagram.com", "linkedin.com"}, got)
	assert.Empty(t, DetectSocialLinks("<p>none</p>"))
}

func TestCTA(t *testing.T) {
	labels := CTATexts([]string{"", "  Learn more ", "Schedule a free consultation with our team today", "Order now"})
	assert.Equal(t, []string{"Learn more", "Order now"}, labels)
	assert.Equal(t, "Order now", PrimaryCTA(labels))
	assert.Equal(t, "Learn more", PrimaryCTA([]string{"Learn more"}))
	assert.Equal(t, model.NoCTAFound, PrimaryCTA(nil))
}

func TestParseStructuredData(t *testing.T) {
	got := ParseStructuredData([]string{`{"@type":"Organization"}`, "", "null", "{bad", `[{"@type":"WebSite"}]`})
	require.Len(t, got, 2)
	assert.IsType(t, map[string]any{}, got[0])
	assert.IsType(t, []any{}, got[1])
}

func TestContentSignals(t *testing.T) {
	assert.True(t, HasBlog([]string{"https://a.com/Blog/post"}))
	assert.False(t, HasBlog([]string{"https://a.com/about"}))
	assert.True(t, HasTestimonials("Read our Testimonials", nil))
	assert.True(t, HasTestimonials("", []string{"https://a.com/reviews"}))
	assert.False(t, HasTestimonials("hello", []string{"https://a.com/"}))

	trust := TrustFromLinks([]string{"https://a.com/terms-and-conditions"})
	assert.False(t, trust.HasPrivacyPolicy)
	assert.True(t, trust.HasTerms)
}

func TestSiteHost(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.Example.com/x", "example.com"},
		{"http://example.com:8080/", "example.com:8080"},
		{"https://blog.example.com", "blog.example.com"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, SiteHost(u))
	}
}

func TestNormalizeLink(t *testing.T) {
	u, _ := url.Parse("HTTPS://Example.COM#top")
	got, ok := NormalizeLink(u)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/", got)

	u, _ = url.Parse("javascript:void(0)")
	_, ok = NormalizeLink(u)
	assert.False(t, ok)
}

func TestClassifyLinks(t *testing.T) {
	base, _ := url.Parse("https://www.acme.com/services/")
	set := ClassifyLinks(base, []string{
		"plumbing", "/about#team", "/about", "https://acme.com/contact",
		"https://elsewhere.org/", "tel:123", "#", " ",
	})
	assert.Equal(t, []string{
		"https://www.acme.com/services/plumbing",
		"https://www.acme.com/about",
		"https://acme.com/contact",
		"https://www.acme.com/services/",
	}, set.SameSite)
	assert.Equal(t, 5, set.InternalCount)
	assert.Equal(t, 1, set.ExternalCount)
}
