package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_Detect(t *testing.T) {
	tests := []struct {
		name        string
		keywords    []string
		text        string
		wantKeyword string
		wantMatch   bool
	}{
		{
			name:        "single keyword hit",
			keywords:    []string{"人找车"},
			text:        "人找车：北京到上海",
			wantKeyword: "人找车",
			wantMatch:   true,
		},
		{
			name:        "keyword in middle of text",
			keywords:    []string{"人找车"},
			text:        "明天有人找车吗，两位",
			wantKeyword: "人找车",
			wantMatch:   true,
		},
		{
			name:      "no keyword",
			keywords:  []string{"人找车"},
			text:      "今天天气不错",
			wantMatch: false,
		},
		{
			name:        "first by list order wins, not position in text",
			keywords:    []string{"车找人", "人找车"},
			text:        "人找车和车找人都有",
			wantKeyword: "车找人",
			wantMatch:   true,
		},
		{
			name:      "matching is case-sensitive",
			keywords:  []string{"URGENT"},
			text:      "this is urgent",
			wantMatch: false,
		},
		{
			name:      "empty text never matches",
			keywords:  []string{"人找车"},
			text:      "",
			wantMatch: false,
		},
		{
			name:      "empty keyword entries are skipped",
			keywords:  []string{"", "人找车"},
			text:      "随便聊聊",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.keywords)
			kw, ok := m.Detect(tt.text)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.wantKeyword, kw)
			if ok {
				// A returned keyword is always present verbatim in the input.
				assert.Contains(t, tt.text, kw)
			}
		})
	}
}

func TestMatcher_KeywordsIsACopy(t *testing.T) {
	src := []string{"人找车"}
	m := NewMatcher(src)

	src[0] = "别的"
	kw, ok := m.Detect("人找车：两位")
	assert.True(t, ok)
	assert.Equal(t, "人找车", kw)

	got := m.Keywords()
	got[0] = "改了"
	assert.Equal(t, []string{"人找车"}, m.Keywords())
}
