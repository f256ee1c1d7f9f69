
package classifier

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChallengeCaseInsensitive(t *testing.T) {
	cl := New()
	for _, body := range []string{
		"ARE YOU HUMAN? Please verify.",
		"are you human? please verify.",
		"<html><title>Are You Human</title></html>",
	} {
		assert.Equal(t, LabelChallenge, cl.Classify(body).Label, body)
	}
}

func TestClassifyContent(t *testing.T) {
	c := New().Classify("<html><body><p>In loving memory</p></body></html>")
	assert.Equal(t, LabelContent, c.Label)
	assert.Empty(t, c.Reason)
}

func TestClassifyIgnoresPhraseAfterSample(t *testing.T) {
	body := strings.Repeat("x", SampleChars) + "are you human"
	assert.Equal(t, LabelContent, New().Classify(body).Label)

	// phrase straddling the boundary is cut off too
	body = strings.Repeat("x", SampleChars-5) + "are you human"
	assert.Equal(t, LabelContent, New().Classify(body).Label)

	body = strings.Repeat("x", SampleChars-len(challengePhrase)) + "are you human"
	assert.Equal(t, LabelChallenge, New().Classify(body).Label)
}

func TestSampleCountsCharactersNotBytes(t *testing.T) {
	body := strings.Repeat("é", SampleChars+10)
	s := Sample(body)
	assert.Equal(t, SampleChars, utf8.RuneCountInString(s))

	assert.Equal(t, "short", Sample("short"))
}
