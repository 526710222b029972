package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformAshby is the Ashby ATS platform
	PlatformAshby Platform = "ashby"
	// PlatformLinkedIn is a public LinkedIn job view
	PlatformLinkedIn Platform = "linkedin"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

var platformHosts = []struct {
	suffix   string
	platform Platform
}{
	{"greenhouse.io", PlatformGreenhouse},
	{"lever.co", PlatformLever},
	{"myworkdayjobs.com", PlatformWorkday},
	{"workday.com", PlatformWorkday},
	{"ashbyhq.com", PlatformAshby},
	{"linkedin.com", PlatformLinkedIn},
}

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	for _, h := range platformHosts {
		if host == h.suffix || strings.HasSuffix(host, "."+h.suffix) {
			return h.platform
		}
	}
	return PlatformUnknown
}

// RequiresBrowser reports whether the platform renders postings client side.
func (p Platform) RequiresBrowser() bool {
	return p == PlatformWorkday || p == PlatformAshby
}

// PlatformContentSelectors returns content selectors for a platform, most specific first.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{
			".job__description.body",
			".job__description",
			".job-description__content",
			"#content",
			".job-post-container",
		}
	case PlatformLever:
		return []string{
			".posting-page",
			".section-wrapper.page-full-width",
			".posting-description",
			".content",
		}
	case PlatformWorkday:
		return []string{
			"[data-automation-id='jobPostingDescription']",
			"[data-automation-id='jobDescription']",
			".job-description",
		}
	case PlatformAshby:
		return []string{
			"._descriptionText_oj0x8_198",
			"[class*='descriptionText']",
			"#overview",
			"main",
		}
	case PlatformLinkedIn:
		return []string{
			".show-more-less-html__markup",
			".description__text",
			".decorated-job-posting__details",
		}
	default:
		return JobPostingSelectors()
	}
}

// PlatformNoiseSelectors returns elements to strip before extraction.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		"form",
		"#application-form",
		".application-form",
		".apply-button-container",
		"[data-testid='application-form']",

		".voluntary-disclosure",
		".eeo-statement",
		".eeo-section",
		".self-identification",

		".social-share",
		".share-buttons",

		".cookie-consent",
		".gdpr-notice",
	}

	switch platform {
	case PlatformGreenhouse:
		return append(common,
			".application--wrapper",
			".voluntary-self-id",
			"#usa_self_id_section",
		)
	case PlatformLever:
		return append(common,
			".apply-section",
			".posting-apply",
		)
	case PlatformWorkday:
		return append(common,
			"[data-automation-id='applyButton']",
		)
	case PlatformLinkedIn:
		return append(common,
			".show-more-less-html__button",
			".sign-up-modal",
			".top-card-layout__cta-container",
		)
	default:
		return common
	}
}
