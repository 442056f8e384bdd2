package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_TokenAndState(t *testing.T) {
	got := Parse("access_token=ABC&state=xyz")
	assert.Equal(t, map[string]string{"access_token": "ABC", "state": "xyz"}, got)
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("#"))
	assert.NotNil(t, Parse(""))
}

func TestParse_LeadingMarkers(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, Parse("#a=1"))
	assert.Equal(t, map[string]string{"a": "1"}, Parse("?a=1"))
	assert.Equal(t, map[string]string{"a": "1"}, Parse("#?a=1"))
}

func TestParse_PercentDecoding(t *testing.T) {
	got := Parse("access_token=EAA%2Fb%3D%3D&redirect=https%3A%2F%2Fexample.com%2F")
	assert.Equal(t, "EAA/b==", got["access_token"])
	assert.Equal(t, "https://example.com/", got["redirect"])
}

func TestParse_PlusInValueIsSpace(t *testing.T) {
	got := Parse("msg=hello+world&a+b=c")
	assert.Equal(t, "hello world", got["msg"])
	// Keys keep "+" as-is.
	assert.Equal(t, "c", got["a+b"])
}

func TestParse_KeyWithoutValue(t *testing.T) {
	got := Parse("flag&x=")
	assert.Equal(t, map[string]string{"flag": "", "x": ""}, got)
}

func TestParse_SkipsEmptyPairsAndKeys(t *testing.T) {
	got := Parse("&&=orphan&a=1&")
	assert.Equal(t, map[string]string{"a": "1"}, got)
}

func TestParse_LastValueWins(t *testing.T) {
	got := Parse("access_token=old&access_token=new")
	assert.Equal(t, "new", got["access_token"])
}

func TestParse_MalformedEscapeKeptVerbatim(t *testing.T) {
	got := Parse("bad=%zz&ok=%41")
	assert.Equal(t, "%zz", got["bad"])
	assert.Equal(t, "A", got["ok"])
}

func TestParse_ValueContainingEquals(t *testing.T) {
	got := Parse("access_token=abc==&expires_in=5183944")
	assert.Equal(t, "abc==", got["access_token"])
	assert.Equal(t, "5183944", got["expires_in"])
}

func TestEncodeComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a b?x=1&y=2", "https%3A%2F%2Fexample.com%2Fa%20b%3Fx%3D1%26y%3D2"},
		{"it's (fine)!*~", "it's%20(fine)!*~"},
		{"plain-text_1.0", "plain-text_1.0"},
		{"a+b", "a%2Bb"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeComponent(tt.in), tt.in)
	}
}

func TestEncodeComponent_RoundTripsThroughParse(t *testing.T) {
	value := "https://example.com/post?id=7&lang=en"
	got := Parse("id=" + EncodeComponent(value))
	assert.Equal(t, value, got["id"])
}
