package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/site-audit/internal/model"
)

var (
	addressRe = regexp.MustCompile(`(?i)[\s\S]{0,50}\b(address|location|suite|floor|street|road|close|plot|block|avenue|crescent|way|estate|plaza|building|off|opp|behind|adjacent|km|lagos|abuja|port harcourt|kano|ibadan|enugu)\b[\s\S]{0,150}`)
	controlWS = regexp.MustCompile(`[\r\n\t]+`)
	anyWS     = regexp.MustCompile(`\s+`)

	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	waRe    = regexp.MustCompile(`wa\.me|whatsapp\.com`)

	ctaVerbRe = regexp.MustCompile(`(?i)book|buy|order|get|start|contact|join`)
)

// SocialPlatforms are the hosts whose mention in page markup counts as a social link.
var SocialPlatforms = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"tiktok.com",
	"youtube.com",
}

// MaxCTAChars bounds the text of an element counted as a call to action.
const MaxCTAChars = 30

// DetectAddress finds the first address-like token in text and returns it
// with up to 50 characters before and 150 after, whitespace collapsed.
func DetectAddress(text string) (string, bool) {
	m := addressRe.FindString(text)
	if m == "" {
		return "", false
	}
	m = controlWS.ReplaceAllString(m, " ")
	m = strings.TrimSpace(anyWS.ReplaceAllString(m, " "))
	return m, m != ""
}

// DetectPhone reports a loosely grouped digit run in text or any tel: link.
func DetectPhone(text string, hrefs []string) bool {
	return phoneRe.MatchString(text) || anyHasPrefix(hrefs, "tel:")
}

// DetectEmail reports an email address in text or any mailto: link.
func DetectEmail(text string, hrefs []string) bool {
	return emailRe.MatchString(text) || anyHasPrefix(hrefs, "mailto:")
}

// DetectWhatsApp reports a WhatsApp link in the markup or a mention in the text.
func DetectWhatsApp(markup, text string) bool {
	return waRe.MatchString(markup) || strings.Contains(strings.ToLower(text), "whatsapp")
}

// DetectSocialLinks lists the platforms mentioned anywhere in the markup.
func DetectSocialLinks(markup string) []string {
	found := make([]string, 0, len(SocialPlatforms))
	for _, p := range SocialPlatforms {
		if strings.Contains(markup, p) {
			found = append(found, p)
		}
	}
	return found
}

// CTATexts keeps the non-empty button labels shorter than MaxCTAChars.
func CTATexts(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if n := utf8.RuneCountInString(l); n > 0 && n < MaxCTAChars {
			out = append(out, l)
		}
	}
	return out
}

// PrimaryCTA picks the first label with an action verb, else the first
// label, else model.NoCTAFound.
func PrimaryCTA(ctas []string) string {
	for _, c := range ctas {
		if ctaVerbRe.MatchString(c) {
			return c
		}
	}
	if len(ctas) > 0 {
		return ctas[0]
	}
	return model.NoCTAFound
}

// ParseStructuredData decodes each JSON-LD block on its own. Blocks that are
// blank or fail to parse are dropped.
func ParseStructuredData(blocks []string) []any {
	out := make([]any, 0, len(blocks))
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(b), &v); err != nil || v == nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// TrustFromLinks derives legal-page signals from same-site links.
func TrustFromLinks(links []string) model.TrustSignals {
	return model.TrustSignals{
		HasPrivacyPolicy: anyContains(links, "privacy"),
		HasTerms:         anyContains(links, "terms", "condition"),
	}
}

// HasBlog reports a same-site link to a blog, news or articles section.
func HasBlog(links []string) bool {
	return anyContains(links, "blog", "news", "articles")
}

// HasTestimonials reports testimonial wording in text or links to stories or reviews.
func HasTestimonials(text string, links []string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "testimonial") ||
		strings.Contains(lower, "what our clients say") ||
		anyContains(links, "stories", "reviews")
}

func anyContains(links []string, needles ...string) bool {
	for _, l := range links {
		l = strings.ToLower(l)
		for _, n := range needles {
			if strings.Contains(l, n) {
				return true
			}
		}
	}
	return false
}

func anyHasPrefix(hrefs []string, prefix string) bool {
	for _, h := range hrefs {
		if len(h) >= len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}
