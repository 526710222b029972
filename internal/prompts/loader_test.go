package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("pitch.json", "validate-jd-system")
	require.NoError(t, err)
	assert.Contains(t, prompt, "valid job description")
	assert.Contains(t, prompt, "VALID_JD")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.ErrorContains(t, err, "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("pitch.json", "nonexistent-key")
	assert.ErrorContains(t, err, "not found")
}

func TestMustGet(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
	assert.NotPanics(t, func() { assert.NotEmpty(t, MustGet("pitch.json", "generate-deck-system")) })
}

func TestRender(t *testing.T) {
	ClearCache()

	out, err := Render("pitch.json", "assess-fit-user", map[string]string{
		"JobDescription":   "Senior Go engineer",
		"CandidateContext": "6 years of Go",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Job Description:\nSenior Go engineer")
	assert.Contains(t, out, "Candidate Context:\n6 years of Go")
}

func TestRender_MissingKey(t *testing.T) {
	ClearCache()

	_, err := Render("pitch.json", "assess-fit-user", map[string]string{"JobDescription": "x"})
	assert.ErrorContains(t, err, "failed to render prompt")
}

func TestRender_TargetRoles(t *testing.T) {
	ClearCache()

	out, err := Render("pitch.json", "validate-jd-system", map[string]string{"TargetRoles": "Data Engineer"})
	require.NoError(t, err)
	assert.Contains(t, out, "for a Data Engineer or related position")
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("pitch.json")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"assess-fit-system",
		"assess-fit-user",
		"generate-deck-system",
		"generate-deck-user",
		"validate-jd-system",
		"validate-jd-user",
	}, keys)
}

func TestEveryPromptParses(t *testing.T) {
	ClearCache()

	keys, err := List("pitch.json")
	require.NoError(t, err)
	for _, key := range keys {
		_, err := loadTemplate("pitch.json", key)
		assert.NoError(t, err, key)
	}
}
