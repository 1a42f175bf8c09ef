package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		label     string
		wantCode  string
		wantLabel string
	}{
		{"code only", "technology", "", "technology", "科技"},
		{"label in code slot", "科技", "", "technology", "科技"},
		{"both present", "life", "生活", "life", "生活"},
		{"label in code slot with label", "游戏", "游戏", "game", "游戏"},
		{"unknown passes through", "underwater", "", "underwater", "underwater"},
		{"empty stays empty", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, label := NormalizeCategory(tt.category, tt.label)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestNormalizeCategory_Idempotent(t *testing.T) {
	code, label := NormalizeCategory("舞蹈", "")
	code2, label2 := NormalizeCategory(code, label)
	assert.Equal(t, code, code2)
	assert.Equal(t, label, label2)
}

func TestCategoryMatches(t *testing.T) {
	assert.True(t, CategoryMatches("music", "音乐", "music"))
	assert.True(t, CategoryMatches("music", "音乐", "音乐"))
	assert.False(t, CategoryMatches("music", "音乐", "dance"))
	assert.False(t, CategoryMatches("music", "音乐", ""))

	// Unknown categories still match themselves
	assert.True(t, CategoryMatches("underwater", "underwater", "underwater"))
}

func TestVideoNormalize(t *testing.T) {
	v := Video{ID: "v1", Category: "影视"}
	v.Normalize()
	assert.Equal(t, "movie", v.Category)
	assert.Equal(t, "影视", v.CategoryName)
	assert.NotNil(t, v.LikedBy)
	assert.NotNil(t, v.Comments)
	assert.NotNil(t, v.Tags)
}

func TestBlobRef(t *testing.T) {
	ref := BlobRef("media_1")
	assert.Equal(t, "indexeddb:media_1", ref)

	id, ok := ParseBlobRef(ref)
	assert.True(t, ok)
	assert.Equal(t, "media_1", id)

	_, ok = ParseBlobRef("https://example.com/x.mp4")
	assert.False(t, ok)
	_, ok = ParseBlobRef("")
	assert.False(t, ok)
}
