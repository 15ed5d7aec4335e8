package platform

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_WithDefaults(t *testing.T) {
	md := Metadata{Title: "t"}.WithDefaults()
	assert.Equal(t, DefaultCategoryID, md.CategoryID)
	assert.Equal(t, DefaultPrivacyStatus, md.PrivacyStatus)

	md = Metadata{Title: "t", CategoryID: "10", PrivacyStatus: "Unlisted"}.WithDefaults()
	assert.Equal(t, "10", md.CategoryID)
	assert.Equal(t, "unlisted", md.PrivacyStatus)
}

func TestMetadata_Validate(t *testing.T) {
	tags := func(total int) []string {
		var out []string
		for total > 0 {
			n := min(total, 50)
			out = append(out, strings.Repeat("t", n))
			total -= n
		}
		return out
	}

	tests := []struct {
		name string
		md   Metadata
		want error
	}{
		{"valid", Metadata{Title: "My video"}, nil},
		{"title 100 chars", Metadata{Title: strings.Repeat("a", 100)}, nil},
		{"title 101 chars", Metadata{Title: strings.Repeat("a", 101)}, ErrTitleTooLong},
		{"multibyte title counts characters", Metadata{Title: strings.Repeat("é", 100)}, nil},
		{"empty title", Metadata{Title: ""}, ErrTitleRequired},
		{"blank title", Metadata{Title: "   "}, ErrTitleRequired},
		{"description 5000", Metadata{Title: "t", Description: strings.Repeat("d", 5000)}, nil},
		{"description 5001", Metadata{Title: "t", Description: strings.Repeat("d", 5001)}, ErrDescriptionTooLong},
		{"tags 500", Metadata{Title: "t", Tags: tags(500)}, nil},
		{"tags 501", Metadata{Title: "t", Tags: tags(501)}, ErrTagsTooLong},
		{"privacy private", Metadata{Title: "t", PrivacyStatus: "private"}, nil},
		{"privacy invalid", Metadata{Title: "t", PrivacyStatus: "secret"}, ErrInvalidPrivacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.md.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTagsLength(t *testing.T) {
	assert.Equal(t, 0, TagsLength(nil))
	assert.Equal(t, 7, TagsLength([]string{"go", "video"}))
	assert.Equal(t, 2, TagsLength([]string{"ñé"}))
}

func TestMetadata_Resource(t *testing.T) {
	md := Metadata{
		Title:         "Title",
		Description:   "Desc",
		Tags:          []string{"a", "b"},
		CategoryID:    "22",
		PrivacyStatus: "unlisted",
	}
	data, err := json.Marshal(md.resource())
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Title", got["snippet"]["title"])
	assert.Equal(t, "Desc", got["snippet"]["description"])
	assert.Equal(t, "22", got["snippet"]["categoryId"])
	assert.Equal(t, []any{"a", "b"}, got["snippet"]["tags"])
	assert.Equal(t, "unlisted", got["status"]["privacyStatus"])
}

func TestMetadata_ResourceSendsEmptyDescription(t *testing.T) {
	data, err := json.Marshal(Metadata{Title: "Title"}.WithDefaults().resource())
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Contains(t, got["snippet"], "description")
	assert.NotContains(t, got["snippet"], "tags")
	assert.Equal(t, "public", got["status"]["privacyStatus"])
}
