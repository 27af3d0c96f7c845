package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

func TestToggle_FlagsOnlyWithoutPublisher(t *testing.T) {
	req := require.New(t)
	media := NewMediaController(&fakeEngine{})

	audio, err := media.ToggleAudio(context.Background())
	req.NoError(err)
	req.False(audio)

	video, err := media.ToggleVideo(context.Background())
	req.NoError(err)
	req.False(video)

	a, v, screen := media.State()
	req.False(a)
	req.False(v)
	req.False(screen)
}

func TestToggle_RevertsOnTrackError(t *testing.T) {
	req := require.New(t)
	pub := &fakePublisher{audio: true, video: true, videoSetErr: fmt.Errorf("track gone")}
	engine := &fakeEngine{pubQueue: []pubResult{{pub: pub}}}
	media := NewMediaController(engine)
	session := newFakeSession("c1")

	req.NoError(media.Publish(context.Background(), session))

	// The flag and the live track change together or not at all.
	enabled, err := media.ToggleVideo(context.Background())
	req.Error(err)
	req.True(enabled)
	_, video, _ := media.State()
	req.True(video)
}

func TestPublish_FallsBackWhenVideoDeviceMissing(t *testing.T) {
	req := require.New(t)
	audioOnly := &fakePublisher{audio: true}
	engine := &fakeEngine{pubQueue: []pubResult{
		{err: &core.DeviceError{Kind: "video", Err: fmt.Errorf("no camera")}},
		{pub: audioOnly},
	}}
	media := NewMediaController(engine)
	session := newFakeSession("c1")

	req.NoError(media.Publish(context.Background(), session))

	req.Len(engine.pubCalls, 2)
	req.True(engine.pubCalls[0].Video)
	req.False(engine.pubCalls[1].Video)
	req.True(engine.pubCalls[1].Audio)

	audio, video, _ := media.State()
	req.True(audio)
	req.False(video)
	req.Equal([]core.Publisher{audioOnly}, session.published)
}

func TestPublish_FailsWhenNothingLeftToPublish(t *testing.T) {
	req := require.New(t)
	engine := &fakeEngine{pubQueue: []pubResult{
		{err: &core.DeviceError{Kind: "video", Err: fmt.Errorf("no camera")}},
	}}
	media := NewMediaController(engine)
	session := newFakeSession("c1")

	// Audio already off, so losing video leaves nothing to publish.
	_, err := media.ToggleAudio(context.Background())
	req.NoError(err)

	err = media.Publish(context.Background(), session)
	var devErr *core.DeviceError
	req.ErrorAs(err, &devErr)
	req.Empty(session.published)
}

func TestScreenShare_Lifecycle(t *testing.T) {
	req := require.New(t)
	screenPub := &fakePublisher{video: true, screen: true}
	engine := &fakeEngine{pubQueue: []pubResult{{pub: screenPub}}}
	media := NewMediaController(engine)
	session := newFakeSession("c1")

	on, err := media.ToggleScreenShare(context.Background(), session)
	req.NoError(err)
	req.True(on)
	req.True(engine.pubCalls[0].Screen)
	req.Equal([]core.Publisher{screenPub}, session.published)

	off, err := media.ToggleScreenShare(context.Background(), session)
	req.NoError(err)
	req.False(off)
	req.Equal([]core.Publisher{screenPub}, session.unpublished)
	req.Equal(1, screenPub.closes)
}

func TestUnpublish_KeepsFlagIntent(t *testing.T) {
	req := require.New(t)
	pub := &fakePublisher{audio: true, video: true}
	engine := &fakeEngine{pubQueue: []pubResult{{pub: pub}}}
	media := NewMediaController(engine)
	session := newFakeSession("c1")

	req.NoError(media.Publish(context.Background(), session))
	media.Unpublish(context.Background(), session)

	req.Equal(1, pub.closes)
	audio, video, _ := media.State()
	req.True(audio)
	req.True(video)
}

func TestUpdateDevices_SkippedWhilePermissionPending(t *testing.T) {
	req := require.New(t)
	engine := &fakeEngine{
		pending: true,
		devices: []domain.Device{{ID: "mic0", Kind: domain.DeviceAudioInput, Label: "Mic"}},
	}
	media := NewMediaController(engine)

	req.NoError(media.UpdateDevices(context.Background()))
	req.Empty(media.Devices())

	engine.pending = false
	req.NoError(media.UpdateDevices(context.Background()))
	req.Len(media.Devices(), 1)
}
