package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://job-boards.greenhouse.io/doordashusa/jobs/7063751", PlatformGreenhouse},
		{"https://boards.greenhouse.io/company/jobs/123", PlatformGreenhouse},
		{"https://jobs.lever.co/company/job-id", PlatformLever},
		{"https://company.wd5.myworkdayjobs.com/en-US/External", PlatformWorkday},
		{"https://jobs.ashbyhq.com/acme/1234", PlatformAshby},
		{"https://www.linkedin.com/jobs/view/123", PlatformLinkedIn},
		{"https://example.com/jobs", PlatformUnknown},
		{"https://notgreenhouse.io.example.com/jobs", PlatformUnknown},
		{"https://indeed.com/viewjob", PlatformUnknown},
		{"://bad", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestPlatform_RequiresBrowser(t *testing.T) {
	assert.True(t, PlatformWorkday.RequiresBrowser())
	assert.True(t, PlatformAshby.RequiresBrowser())
	assert.False(t, PlatformGreenhouse.RequiresBrowser())
	assert.False(t, PlatformUnknown.RequiresBrowser())
}

func TestPlatformContentSelectors(t *testing.T) {
	assert.Equal(t, ".job__description.body", PlatformContentSelectors(PlatformGreenhouse)[0])
	assert.Contains(t, PlatformContentSelectors(PlatformLever), ".posting-page")
	assert.Contains(t, PlatformContentSelectors(PlatformLinkedIn), ".show-more-less-html__markup")
	assert.Equal(t, JobPostingSelectors(), PlatformContentSelectors(PlatformUnknown))
}

func TestPlatformNoiseSelectors(t *testing.T) {
	common := PlatformNoiseSelectors(PlatformUnknown)
	assert.Contains(t, common, "form")
	assert.Contains(t, common, ".eeo-statement")

	gh := PlatformNoiseSelectors(PlatformGreenhouse)
	assert.Contains(t, gh, "#usa_self_id_section")
	assert.Greater(t, len(gh), len(common))
}

func TestExtractMainText_GreenhouseStripsApplication(t *testing.T) {
	html := `<html><body>
		<div class="job__description body"><h2>About the role</h2><p>Build data pipelines in Go.</p></div>
		<div class="application--wrapper"><form><label>First name</label></form></div>
	</body></html>`

	text, err := ExtractMainText(html, PlatformContentSelectors(PlatformGreenhouse), PlatformNoiseSelectors(PlatformGreenhouse)...)
	assert.NoError(t, err)
	assert.Contains(t, text, "Build data pipelines in Go.")
	assert.NotContains(t, text, "First name")
}
