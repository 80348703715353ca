package strings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greyhatlabs/triage/internal/config"
)

func TestExtractASCIIFindsRuns(t *testing.T) {
	data := []byte("\x00\x00hello world\x00\x00ab\x00\x00longenough\x00")
	samples, truncated := ExtractASCII(data, 4, 1<<20, time.Second)
	assert.False(t, truncated)
	assert.Contains(t, samples, "hello world")
	assert.Contains(t, samples, "longenough")
	assert.NotContains(t, samples, "ab")
}

func TestExtractUTF16LE(t *testing.T) {
	data := []byte{'h', 0, 'i', 0, '!', 0, 0, 0}
	samples, _ := ExtractUTF16(data, 2, 1<<20, true, time.Second)
	assert.Contains(t, samples, "hi!")
}

func TestExtractUTF16BE(t *testing.T) {
	data := []byte{0, 'h', 0, 'i', 0, '!', 0, 0}
	samples, _ := ExtractUTF16(data, 2, 1<<20, false, time.Second)
	assert.Contains(t, samples, "hi!")
}

func TestDefangOnlyShortStrings(t *testing.T) {
	assert.Equal(t, "http://evil.com", Defang("hxxp://evil[.]com"))
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	s := string(long) + "hxxp://evil.com"
	assert.Equal(t, s, Defang(s))
}

func TestClassifyIOCsFindsURLAndIPv4(t *testing.T) {
	samples := ClassifyIOCs("beacon to http://10.0.0.1/x and mail@test.com", 16)
	var kinds []string
	for _, s := range samples {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, "url")
	assert.Contains(t, kinds, "email")
}

func TestClassifyIOCsRejectsInvalidIPv4(t *testing.T) {
	samples := ClassifyIOCs("999.999.999.999 is not an ip", 16)
	for _, s := range samples {
		assert.NotEqual(t, "ipv4_candidate", s.Kind)
	}
}

func TestDetectEnglish(t *testing.T) {
	cfg := config.Default().Strings
	d := Detect("the file was not found and the error was logged", cfg)
	if assert.NotNil(t, d) {
		assert.Equal(t, "eng", d.Code)
	}
}

func TestDetectRejectsCodeish(t *testing.T) {
	cfg := config.Default().Strings
	assert.Nil(t, Detect("foo/bar;baz<qux>", cfg))
}

func TestSummarizeCapsSamples(t *testing.T) {
	cfg := config.Default().Strings
	cfg.MaxSamples = 2
	ext := Extracted{ASCII: []string{"one", "two", "three"}}
	summary := Summarize(ext, cfg)
	assert.Len(t, summary.Samples, 2)
	assert.Equal(t, 3, summary.ASCIICount)
}
