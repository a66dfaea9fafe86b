package usage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// bigObject builds a valid JSON object larger than minJSONRegion
func bigObject() string {
	var b strings.Builder
	b.WriteString(`{"items":[`)
	for i := 0; i < 20; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"id":1,"name":"x"}`)
	}
	b.WriteString(`]}`)
	return b.String()
}

func TestScanJSONDetectsLargeRegion(t *testing.T) {
	text := "here is the payload: " + bigObject() + " thanks"
	found, bytes := ScanJSON(text)
	assert.True(t, found)
	assert.Equal(t, len(bigObject()), bytes)
}

func TestScanJSONIgnoresSmallRegions(t *testing.T) {
	found, bytes := ScanJSON(`small: {"a":1} and [1,2,3]`)
	assert.False(t, found)
	assert.Zero(t, bytes)
}

func TestScanJSONIgnoresUnbalanced(t *testing.T) {
	truncated := bigObject()
	truncated = truncated[:len(truncated)-2]
	found, _ := ScanJSON("data: " + truncated)
	assert.False(t, found)
}

func TestScanJSONHonorsStringLiterals(t *testing.T) {
	// the closing brace inside the string must not end the region
	var b strings.Builder
	b.WriteString(`{"note":"a } inside","items":[`)
	for i := 0; i < 20; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"id":2}`)
	}
	b.WriteString(`]}`)

	found, bytes := ScanJSON(b.String())
	assert.True(t, found)
	assert.Equal(t, b.Len(), bytes)
}

func TestScanJSONSumsAcrossTexts(t *testing.T) {
	found, bytes := ScanJSON(bigObject(), "no json here", bigObject())
	assert.True(t, found)
	assert.Equal(t, 2*len(bigObject()), bytes)
}

func TestScanJSONArrayRegion(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 30; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"n":3}`)
	}
	b.WriteString("]")

	found, bytes := ScanJSON(b.String())
	assert.True(t, found)
	assert.Equal(t, b.Len(), bytes)
}
