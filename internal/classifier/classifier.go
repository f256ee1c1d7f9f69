
package classifier

import (
	"strings"

	"obit-feed-enricher/internal/models"
)

const (
	LabelContent   = "content"
	LabelChallenge = "challenge"
)

// SampleChars bounds how much of a page body is inspected for the challenge
// phrase. Only the head of the page is scanned.
const SampleChars = 500

const challengePhrase = "are you human"

type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// Classify labels a decoded page body as a challenge page or regular content.
func (c *Classifier) Classify(body string) models.Classification {
	reason := map[string]string{}
	if strings.Contains(strings.ToLower(Sample(body)), challengePhrase) {
		reason["phrase"] = "challenge phrase in first 500 characters"
		return models.Classification{Label: LabelChallenge, Reason: reason}
	}
	return models.Classification{Label: LabelContent}
}

// Sample returns the first SampleChars characters (runes, not bytes) of body.
func Sample(body string) string {
	n := 0
	for i := range body {
		if n == SampleChars {
			return body[:i]
		}
		n++
	}
	return body
}
