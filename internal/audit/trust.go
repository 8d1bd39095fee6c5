package audit

import (
	"regexp"
	"strings"

	"github.com/sells-group/site-audit/internal/model"
)

// Issue labels emitted by CheckTrust.
const (
	IssueMissingContact = "Missing Contact Page"
	IssueMissingAbout   = "Missing About Page"
	IssueMissingPrivacy = "Missing Privacy Policy"
	IssueMissingTerms   = "Missing Terms of Service"
	IssueInsecureHTTP   = "Insecure Protocol (HTTP)"
	IssueNoPhone        = "No phone number detected"
)

var sitePhoneRe = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

// CheckTrust inspects the crawl as a whole for legitimacy signals: legal and
// contact pages among the crawled URLs, plain-HTTP pages and a phone number
// anywhere in the text.
func CheckTrust(pages []model.CrawledPage) []model.Issue {
	urls := make([]string, len(pages))
	texts := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = strings.ToLower(p.URL)
		texts[i] = p.RawTextContent
	}

	var issues []model.Issue

	if !anyURLContains(urls, "contact") {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTrustAndAuthority,
			Severity:     model.SeverityHigh,
			Issue:        IssueMissingContact,
			Impact:       `Trust Failure. Google may classify site as a "Lead Gen" scam.`,
			FixAvailable: true,
			FixAction:    "generate_contact_page",
			Explanation: model.Explanation{
				Problem:      "No dedicated Contact page found",
				WhatItMeans:  "Users and Google cannot verify your physical existence",
				WhyItMatters: "Essential for E-E-A-T and Local SEO ranking",
			},
		})
	}

	if !anyURLContains(urls, "about") {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTrustAndAuthority,
			Severity:     model.SeverityMedium,
			Issue:        IssueMissingAbout,
			Impact:       "Brand Authority Failure. Harder to rank for non-branded keywords.",
			FixAvailable: true,
			FixAction:    "generate_about_page",
			Explanation: model.Explanation{
				Problem:      `No "About Us" page found`,
				WhatItMeans:  "Missing story and business context",
				WhyItMatters: "Differentiation is key to conversion",
			},
		})
	}

	if !anyURLContains(urls, "privacy", "policy") {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTrustAndAuthority,
			Severity:     model.SeverityHigh,
			Issue:        IssueMissingPrivacy,
			Impact:       "Critical Trust Failure. Ad campaigns may be blocked.",
			FixAvailable: true,
			FixAction:    "generate_privacy_policy",
			Explanation: model.Explanation{
				Problem:      "No Privacy Policy detected",
				WhatItMeans:  "You are not legally compliant",
				WhyItMatters: "Required by law and Google Ads/Analytics",
			},
		})
	}

	if !anyURLContains(urls, "terms", "conditions") {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTrustAndAuthority,
			Severity:     model.SeverityMedium,
			Issue:        IssueMissingTerms,
			Impact:       "Legal Liability. Users are not bound by any agreement.",
			FixAvailable: true,
			FixAction:    "generate_terms",
			Explanation: model.Explanation{
				Problem:      "No Terms of Service page found",
				WhatItMeans:  "No contract between you and the user",
				WhyItMatters: "Protects your business from liability",
			},
		})
	}

	for i, u := range urls {
		if strings.HasPrefix(u, "http:") && !pages[i].HasSSL {
			issues = append(issues, model.Issue{
				Category:     model.CategoryTechnicalSEO,
				Severity:     model.SeverityHigh,
				Issue:        IssueInsecureHTTP,
				Impact:       `Security Warning. Chrome will label site "Not Secure".`,
				FixAvailable: false,
				FixAction:    "manual_ssl_fix",
				Explanation: model.Explanation{
					Problem:      "Site is served over HTTP",
					WhatItMeans:  "Data is not encrypted",
					WhyItMatters: "Ranking signal and massive user trust factor",
				},
			})
			break
		}
	}

	if !sitePhoneRe.MatchString(strings.Join(texts, " ")) {
		issues = append(issues, model.Issue{
			Category:     model.CategoryLocalSEO,
			Severity:     model.SeverityMedium,
			Issue:        IssueNoPhone,
			Impact:       "Missed leads and weak Local signals",
			FixAvailable: false,
			Explanation: model.Explanation{
				Problem:      "No phone number found in content",
				WhatItMeans:  "Local users cannot call you easily",
				WhyItMatters: "NAP consistency is critical for Local SEO",
			},
		})
	}

	return issues
}

func anyURLContains(urls []string, needles ...string) bool {
	for _, u := range urls {
		for _, n := range needles {
			if strings.Contains(u, n) {
				return true
			}
		}
	}
	return false
}
