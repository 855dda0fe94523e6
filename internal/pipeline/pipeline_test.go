package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mvidal/talkinghead-api/internal/heygen"
	"github.com/mvidal/talkinghead-api/internal/poll"
)

// fakeSpeech is a scripted Synthesizer.
type fakeSpeech struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

// uploadCall records one UploadAsset invocation.
type uploadCall struct {
	data        []byte
	contentType string
	name        string
}

// fakeAvatar is a scripted AvatarProvider. List and video-status calls
// replay their scripts in order; the last entry repeats.
type fakeAvatar struct {
	uploads    []uploadCall
	uploadIDs  []string
	groupID    string
	groupCalls int

	listScript [][]heygen.Avatar
	listCalls  int

	motionID    string
	motionCalls int

	videoID     string
	videoReq    heygen.VideoRequest
	videoScript []heygen.VideoState
	videoCalls  int

	uploadErr error
	listErr   error
}

func (f *fakeAvatar) UploadAsset(_ context.Context, data []byte, contentType, name string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, uploadCall{data: data, contentType: contentType, name: name})
	if len(f.uploadIDs) == 0 {
		return "", heygen.ErrNoAssetID
	}
	id := f.uploadIDs[0]
	f.uploadIDs = f.uploadIDs[1:]
	return id, nil
}

func (f *fakeAvatar) CreateAvatarGroup(_ context.Context, name, imageKey string) (string, error) {
	f.groupCalls++
	if f.groupID == "" {
		return "", heygen.ErrNoGroupID
	}
	return f.groupID, nil
}

func (f *fakeAvatar) ListAvatars(_ context.Context, groupID string) ([]heygen.Avatar, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	idx := f.listCalls
	f.listCalls++
	if idx >= len(f.listScript) {
		idx = len(f.listScript) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	return f.listScript[idx], nil
}

func (f *fakeAvatar) AddMotion(_ context.Context, avatarID, prompt, motionType string) (string, error) {
	f.motionCalls++
	if f.motionID == "" {
		return "", heygen.ErrNoMotionID
	}
	return f.motionID, nil
}

func (f *fakeAvatar) GenerateVideo(_ context.Context, req heygen.VideoRequest) (string, error) {
	f.videoReq = req
	if f.videoID == "" {
		return "", heygen.ErrNoVideoID
	}
	return f.videoID, nil
}

func (f *fakeAvatar) VideoStatus(_ context.Context, videoID string) (heygen.VideoState, error) {
	idx := f.videoCalls
	f.videoCalls++
	if idx >= len(f.videoScript) {
		idx = len(f.videoScript) - 1
	}
	if idx < 0 {
		return heygen.VideoState{}, errors.New("no scripted video status")
	}
	return f.videoScript[idx], nil
}

func (f *fakeAvatar) networkCalls() int {
	return len(f.uploads) + f.groupCalls + f.listCalls + f.motionCalls + f.videoCalls
}

// fastOrchestrator builds an Orchestrator with millisecond polling.
func fastOrchestrator(avatar AvatarProvider, speech Synthesizer, opts ...Option) *Orchestrator {
	base := []Option{
		WithAvatarPollOptions(poll.Options{Interval: time.Millisecond, MaxAttempts: 60}),
		WithVideoPollInterval(time.Millisecond),
	}
	return New(avatar, speech, nil, append(base, opts...)...)
}

// scenarioAvatar scripts the happy path from image upload to rendered URL:
// base avatar av_1 completes on the second status poll, the motion avatar
// completes on the first, and the video job resolves to https://cdn/9.mp4.
func scenarioAvatar() *fakeAvatar {
	return &fakeAvatar{
		uploadIDs: []string{"img_1", "aud_1"},
		groupID:   "grp_1",
		listScript: [][]heygen.Avatar{
			// resolve base avatar
			{{ID: "av_1", Status: heygen.AvatarProcessing}},
			// base poll attempt 1
			{{ID: "av_1", Status: heygen.AvatarProcessing}},
			// base poll attempt 2
			{{ID: "av_1", Status: heygen.AvatarCompleted}},
			// motion poll attempt 1
			{
				{ID: "av_1", Status: heygen.AvatarCompleted},
				{ID: "motion_1", Status: heygen.AvatarCompleted},
			},
		},
		motionID:    "motion_1",
		videoID:     "vid_9",
		videoScript: []heygen.VideoState{{Status: heygen.VideoCompleted, VideoURL: "https://cdn/9.mp4"}},
	}
}

func TestRun_EndToEnd_ScriptBranch(t *testing.T) {
	avatar := scenarioAvatar()
	speech := &fakeSpeech{audio: []byte("synthesized-mp3")}

	o := fastOrchestrator(avatar, speech)
	url, err := o.Run(context.Background(), Input{
		ImageData:  []byte("jpeg-bytes"),
		ImageName:  "avatar.jpg",
		ScriptText: "Hello world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn/9.mp4" {
		t.Errorf("url = %q, want https://cdn/9.mp4", url)
	}

	if speech.calls != 1 {
		t.Errorf("synthesizer called %d times, want 1", speech.calls)
	}
	if len(avatar.uploads) != 2 {
		t.Fatalf("got %d uploads, want 2 (image then audio)", len(avatar.uploads))
	}
	if avatar.uploads[0].contentType != "image/jpeg" {
		t.Errorf("image content type = %q, want image/jpeg", avatar.uploads[0].contentType)
	}
	if string(avatar.uploads[1].data) != "synthesized-mp3" {
		t.Error("audio upload should carry the synthesized bytes")
	}
	if avatar.uploads[1].contentType != "audio/mpeg" {
		t.Errorf("audio content type = %q, want audio/mpeg", avatar.uploads[1].contentType)
	}
	if !strings.HasPrefix(avatar.uploads[1].name, "tts_") {
		t.Errorf("synthesized audio name = %q, want tts_ prefix", avatar.uploads[1].name)
	}
	if avatar.videoReq.TalkingPhotoID != "motion_1" || avatar.videoReq.AudioAssetID != "aud_1" {
		t.Errorf("video request = %+v", avatar.videoReq)
	}
	if avatar.videoReq.Width != DefaultWidth || avatar.videoReq.Height != DefaultHeight {
		t.Errorf("dimensions = %dx%d, want %dx%d",
			avatar.videoReq.Width, avatar.videoReq.Height, DefaultWidth, DefaultHeight)
	}
	// resolve + 2 base polls + 1 motion poll
	if avatar.listCalls != 4 {
		t.Errorf("list calls = %d, want 4", avatar.listCalls)
	}
}

func TestRun_AudioBranchSkipsSynthesizer(t *testing.T) {
	avatar := scenarioAvatar()
	speech := &fakeSpeech{audio: []byte("never-used")}

	o := fastOrchestrator(avatar, speech)
	url, err := o.Run(context.Background(), Input{
		ImageData: []byte("jpeg-bytes"),
		ImageName: "avatar.jpg",
		AudioData: []byte("recorded-wav"),
		AudioName: "clip.wav",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url == "" {
		t.Error("expected a result URL")
	}

	if speech.calls != 0 {
		t.Errorf("synthesizer called %d times, want 0", speech.calls)
	}
	if string(avatar.uploads[1].data) != "recorded-wav" {
		t.Error("audio upload should carry the supplied bytes")
	}
	if avatar.uploads[1].contentType != "audio/wav" {
		t.Errorf("audio content type = %q, want audio/wav", avatar.uploads[1].contentType)
	}
}

func TestRun_AudioBranchWorksWithoutSynthesizer(t *testing.T) {
	avatar := scenarioAvatar()

	o := fastOrchestrator(avatar, nil)
	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("jpeg-bytes"),
		ImageName: "avatar.jpg",
		AudioData: []byte("recorded-mp3"),
		AudioName: "clip.mp3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_ValidationFailuresMakeNoNetworkCalls(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		speech  Synthesizer
		wantErr error
	}{
		{
			name:    "missing image",
			input:   Input{ScriptText: "Hello"},
			speech:  &fakeSpeech{},
			wantErr: ErrImageRequired,
		},
		{
			name:    "no audio source",
			input:   Input{ImageData: []byte("x")},
			speech:  &fakeSpeech{},
			wantErr: ErrAudioSourceRequired,
		},
		{
			name: "both audio sources",
			input: Input{
				ImageData:  []byte("x"),
				ScriptText: "Hello",
				AudioData:  []byte("y"),
			},
			speech:  &fakeSpeech{},
			wantErr: ErrAmbiguousAudioSource,
		},
		{
			name:    "script text without synthesizer",
			input:   Input{ImageData: []byte("x"), ScriptText: "Hello"},
			speech:  nil,
			wantErr: ErrSynthesizerRequired,
		},
		{
			name:    "blank script text is no audio source",
			input:   Input{ImageData: []byte("x"), ScriptText: "   "},
			speech:  &fakeSpeech{},
			wantErr: ErrAudioSourceRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avatar := &fakeAvatar{}
			o := fastOrchestrator(avatar, tt.speech)

			_, err := o.Run(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if avatar.networkCalls() != 0 {
				t.Errorf("validation failure made %d provider calls, want 0", avatar.networkCalls())
			}
		})
	}
}

func TestRun_SynthesisFailureAbortsBeforeUploads(t *testing.T) {
	avatar := scenarioAvatar()
	synthErr := errors.New("voice quota exceeded")
	speech := &fakeSpeech{err: synthErr}

	o := fastOrchestrator(avatar, speech)
	_, err := o.Run(context.Background(), Input{
		ImageData:  []byte("x"),
		ImageName:  "avatar.jpg",
		ScriptText: "Hello",
	})
	if !errors.Is(err, synthErr) {
		t.Fatalf("error = %v, want wrapped %v", err, synthErr)
	}
	if len(avatar.uploads) != 0 {
		t.Errorf("got %d uploads after synthesis failure, want 0", len(avatar.uploads))
	}
}

func TestRun_BaseAvatarFailureSurfaces(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.listScript = [][]heygen.Avatar{
		{{ID: "av_1", Status: heygen.AvatarProcessing}},
		{{ID: "av_1", Status: heygen.AvatarFailed}},
	}

	o := fastOrchestrator(avatar, nil)
	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if !errors.Is(err, poll.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if avatar.motionCalls != 0 {
		t.Error("add motion must not run after the base avatar failed")
	}
}

func TestRun_AvatarPollTimeout(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.listScript = [][]heygen.Avatar{
		{{ID: "av_1", Status: heygen.AvatarProcessing}},
	}

	o := New(avatar, nil, nil,
		WithAvatarPollOptions(poll.Options{Interval: time.Millisecond, MaxAttempts: 3}),
		WithVideoPollInterval(time.Millisecond),
	)
	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if !errors.Is(err, poll.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRun_AvatarListErrorIsFatal(t *testing.T) {
	avatar := scenarioAvatar()
	listErr := errors.New("gateway timeout")
	avatar.listErr = listErr

	o := fastOrchestrator(avatar, nil)
	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if !errors.Is(err, listErr) {
		t.Fatalf("expected list error to propagate, got %v", err)
	}
}

func TestRun_EmptyAvatarList(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.listScript = [][]heygen.Avatar{{}}

	o := fastOrchestrator(avatar, nil)
	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if !errors.Is(err, heygen.ErrEmptyAvatarList) {
		t.Fatalf("expected ErrEmptyAvatarList, got %v", err)
	}
}

func TestRun_CompletedVideoWithoutURLIsRepolled(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.videoScript = []heygen.VideoState{
		{Status: heygen.VideoCompleted, VideoURL: ""},
		{Status: heygen.VideoCompleted, VideoURL: ""},
		{Status: heygen.VideoCompleted, VideoURL: "https://cdn/9.mp4"},
	}

	o := fastOrchestrator(avatar, nil)
	url, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn/9.mp4" {
		t.Errorf("url = %q, want https://cdn/9.mp4", url)
	}
	if avatar.videoCalls != 3 {
		t.Errorf("video status called %d times, want 3", avatar.videoCalls)
	}
}

func TestRun_VideoFailureCarriesProviderDetail(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.videoScript = []heygen.VideoState{
		{Status: heygen.VideoProcessing},
		{Status: heygen.VideoFailed, Error: `{"detail":"render crashed"}`},
	}

	o := fastOrchestrator(avatar, nil)
	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if !errors.Is(err, poll.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "render crashed") {
		t.Errorf("error %q should carry the provider detail", err)
	}
}

// videoStatusSequence is a fake that errors twice before succeeding,
// mimicking a transient network blip during the render poll.
type flakyVideoAvatar struct {
	fakeAvatar
	statusErrs int
}

func (f *flakyVideoAvatar) VideoStatus(ctx context.Context, videoID string) (heygen.VideoState, error) {
	if f.statusErrs > 0 {
		f.statusErrs--
		return heygen.VideoState{}, fmt.Errorf("heygen: request failed: %w", errors.New("connection reset"))
	}
	return f.fakeAvatar.VideoStatus(ctx, videoID)
}

func TestRun_VideoPollToleratesTransientErrors(t *testing.T) {
	avatar := &flakyVideoAvatar{fakeAvatar: *scenarioAvatar(), statusErrs: 2}

	o := fastOrchestrator(avatar, nil)
	url, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn/9.mp4" {
		t.Errorf("url = %q, want https://cdn/9.mp4", url)
	}
}

func TestRun_ProgressIsMonotonicAndCapped(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.videoScript = []heygen.VideoState{
		{Status: heygen.VideoProcessing},
		{Status: heygen.VideoProcessing},
		{Status: heygen.VideoCompleted, VideoURL: "https://cdn/9.mp4"},
	}

	var percents []int
	o := fastOrchestrator(avatar, nil, WithProgress(func(p int, _ string) {
		percents = append(percents, p)
	}))

	_, err := o.Run(context.Background(), Input{
		ImageData: []byte("x"),
		ImageName: "avatar.jpg",
		AudioData: []byte("y"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	if percents[0] != 0 {
		t.Errorf("first checkpoint = %d, want 0 (reset)", percents[0])
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backward: %v", percents)
		}
	}
	last := percents[len(percents)-1]
	if last != 100 {
		t.Errorf("final checkpoint = %d, want 100", last)
	}
	for _, p := range percents[:len(percents)-1] {
		if p > 99 {
			t.Errorf("pre-completion checkpoint %d exceeds 99", p)
		}
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	avatar := scenarioAvatar()
	avatar.listScript = [][]heygen.Avatar{
		{{ID: "av_1", Status: heygen.AvatarProcessing}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := New(avatar, nil, nil,
		WithAvatarPollOptions(poll.Options{Interval: time.Minute, MaxAttempts: 60}),
	)

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, Input{
			ImageData: []byte("x"),
			ImageName: "avatar.jpg",
			AudioData: []byte("y"),
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not abort after cancellation")
	}
}
