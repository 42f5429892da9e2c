package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Real Estate", "real estate"},
		{"real_estate", "real estate"},
		{"Mixed-Use  Development", "mixed use development"},
		{"  trimmed\t\n", "trimmed"},
		{"", ""},
		{"  _-  ", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeText(tc.in), "input %q", tc.in)
	}
}

func TestResolveState(t *testing.T) {
	tests := []struct {
		in   string
		want string // abbrev, or "" for nil
	}{
		{"TX", "TX"},
		{"tx", "TX"},
		{"Texas", "TX"},
		{"  new  york ", "NY"},
		{"District of Columbia", "DC"},
		{"Puerto Rico", "PR"},
		{"Atlantis", ""},
		{"", ""},
		{"T", ""},
	}
	for _, tc := range tests {
		st := ResolveState(tc.in)
		if tc.want == "" {
			assert.Nil(t, st, "input %q", tc.in)
			continue
		}
		require.NotNil(t, st, "input %q", tc.in)
		assert.Equal(t, tc.want, st.Abbrev)
	}
}

func TestContainsWholeWord(t *testing.T) {
	tests := []struct {
		text   string
		phrase string
		want   bool
	}{
		{"Serves Texas and Oklahoma", "Texas", true},
		{"Serves Texas, Oklahoma.", "Oklahoma", true},
		{"New York metro (plus NJ)", "New York", true},
		{"Texarkana region", "Texas", false},
		{"", "Texas", false},
		{"Serves Texas", "", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, containsWholeWord(tc.text, tc.phrase),
			"text %q phrase %q", tc.text, tc.phrase)
	}
}

func TestSplitListField(t *testing.T) {
	assert.Equal(t, []string{"TX", "FL", "New York"}, splitListField("TX, FL; New York"))
	assert.Equal(t, []string{"one"}, splitListField(" one ,, ; "))
	assert.Nil(t, splitListField(""))
}
