package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmedia "github.com/xfrr/goffmpeg/media"
)

func TestClipInfoFromMetadata(t *testing.T) {
	t.Run("video and audio", func(t *testing.T) {
		md := gmedia.Metadata{
			Streams: []gmedia.Streams{
				{CodecType: "video", Width: 1280, Height: 720, AvgFrameRate: "30000/1001"},
				{CodecType: "audio"},
			},
			Format: gmedia.Format{Duration: "12.480000"},
		}

		info, err := clipInfoFromMetadata(md)
		require.NoError(t, err)
		assert.Equal(t, 1280, info.Width)
		assert.Equal(t, 720, info.Height)
		assert.Equal(t, "30000/1001", info.FrameRateExpr)
		assert.InDelta(t, 29.97, info.FrameRate, 0.01)
		assert.InDelta(t, 12.48, info.Duration, 0.0001)
		assert.True(t, info.HasAudio)
	})

	t.Run("video only", func(t *testing.T) {
		md := gmedia.Metadata{
			Streams: []gmedia.Streams{
				{CodecType: "video", Width: 640, Height: 360, AvgFrameRate: "25/1"},
			},
			Format: gmedia.Format{Duration: "3.0"},
		}

		info, err := clipInfoFromMetadata(md)
		require.NoError(t, err)
		assert.False(t, info.HasAudio)
		assert.Equal(t, float64(25), info.FrameRate)
	})

	t.Run("uses first video stream", func(t *testing.T) {
		md := gmedia.Metadata{
			Streams: []gmedia.Streams{
				{CodecType: "video", Width: 640, Height: 360, AvgFrameRate: "25/1"},
				{CodecType: "video", Width: 160, Height: 90, AvgFrameRate: "1/1"},
			},
			Format: gmedia.Format{Duration: "3.0"},
		}

		info, err := clipInfoFromMetadata(md)
		require.NoError(t, err)
		assert.Equal(t, 640, info.Width)
	})

	t.Run("no video stream", func(t *testing.T) {
		md := gmedia.Metadata{
			Streams: []gmedia.Streams{{CodecType: "audio"}},
			Format:  gmedia.Format{Duration: "3.0"},
		}

		_, err := clipInfoFromMetadata(md)
		assert.ErrorIs(t, err, ErrNoVideoStream)
	})

	t.Run("bad duration", func(t *testing.T) {
		md := gmedia.Metadata{
			Streams: []gmedia.Streams{
				{CodecType: "video", Width: 640, Height: 360, AvgFrameRate: "25/1"},
			},
			Format: gmedia.Format{Duration: "N/A"},
		}

		_, err := clipInfoFromMetadata(md)
		assert.Error(t, err)
	})
}
