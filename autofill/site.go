package autofill

import (
	"net/url"
	"strings"
)

// knownSites maps host fragments of supported applicant tracking systems to
// a site type.
var knownSites = []struct {
	fragment string
	site     string
}{
	{"myworkdayjobs.com", "workday"},
	{"workday.com", "workday"},
	{"greenhouse.io", "greenhouse"},
	{"lever.co", "lever"},
	{"smartrecruiters.com", "smartrecruiters"},
	{"taleo.net", "taleo"},
	{"icims.com", "icims"},
	{"linkedin.com", "linkedin"},
}

// DetectSite returns the site type for a page URL, or "" for an unknown site.
func DetectSite(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	for _, k := range knownSites {
		if host == k.fragment || strings.HasSuffix(host, "."+k.fragment) {
			return k.site
		}
	}
	return ""
}
