package platform

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/api/youtube/v3"
)

// Metadata limits enforced before any network call.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 5000
	MaxTagsLength        = 500

	DefaultCategoryID    = "22"
	DefaultPrivacyStatus = "public"
)

// Static errors for metadata validation.
var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = fmt.Errorf("title must be at most %d characters", MaxTitleLength)
	ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	ErrTagsTooLong        = fmt.Errorf("combined tag length must be at most %d characters", MaxTagsLength)
	ErrInvalidPrivacy     = errors.New("privacy status must be one of public, unlisted, private")
)

// Metadata describes the video being uploaded.
type Metadata struct {
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	PrivacyStatus string
}

// WithDefaults returns a copy with category and privacy defaults applied.
func (m Metadata) WithDefaults() Metadata {
	if m.CategoryID == "" {
		m.CategoryID = DefaultCategoryID
	}
	if m.PrivacyStatus == "" {
		m.PrivacyStatus = DefaultPrivacyStatus
	}
	m.PrivacyStatus = strings.ToLower(m.PrivacyStatus)
	return m
}

// Validate checks the platform's metadata limits. Lengths count characters,
// not bytes.
func (m Metadata) Validate() error {
	titleLen := utf8.RuneCountInString(strings.TrimSpace(m.Title))
	switch {
	case titleLen == 0:
		return ErrTitleRequired
	case utf8.RuneCountInString(m.Title) > MaxTitleLength:
		return ErrTitleTooLong
	}

	if utf8.RuneCountInString(m.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	if TagsLength(m.Tags) > MaxTagsLength {
		return ErrTagsTooLong
	}

	switch m.PrivacyStatus {
	case "", "public", "unlisted", "private":
	default:
		return ErrInvalidPrivacy
	}

	return nil
}

// TagsLength returns the summed character length of tags.
func TagsLength(tags []string) int {
	total := 0
	for _, tag := range tags {
		total += utf8.RuneCountInString(tag)
	}
	return total
}

// resource returns the video resource sent when a session is initiated.
func (m Metadata) resource() *youtube.Video {
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:           m.Title,
			Description:     m.Description,
			Tags:            m.Tags,
			CategoryId:      m.CategoryID,
			ForceSendFields: []string{"Description"},
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: m.PrivacyStatus,
		},
	}
}
