// Package pipeline orchestrates one talking-head run end to end: audio
// sourcing (synthesized or supplied), asset uploads, the photo-avatar stage
// sequence and the video-render poll.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mvidal/talkinghead-api/internal/heygen"
	"github.com/mvidal/talkinghead-api/internal/media"
	"github.com/mvidal/talkinghead-api/internal/poll"
)

// Defaults for the avatar pipeline.
const (
	// DefaultGroupName is the display name for created avatar groups.
	DefaultGroupName = "Generated Talking Photo"
	// DefaultMotionType selects the provider's motion model.
	DefaultMotionType = "runway_gen4"
	// DefaultWidth and DefaultHeight are the output video dimensions.
	DefaultWidth  = 720
	DefaultHeight = 1280
)

// DefaultMotionPrompt is the animation directive sent with add-motion.
const DefaultMotionPrompt = "Talk naturally with a warm, friendly tone while keeping steady eye contact with the viewer; " +
	"use smooth facial expressions and soft, irregular blinks; if hands are visible, move them gently with small, " +
	"relaxed gestures; keep head movements minimal and smooth without sudden or jerky motions."

// Validation errors, reported before any network call is made.
var (
	// ErrImageRequired is returned when no avatar image is supplied.
	ErrImageRequired = errors.New("pipeline: an avatar image is required")
	// ErrAudioSourceRequired is returned when neither script text nor an
	// audio clip is supplied.
	ErrAudioSourceRequired = errors.New("pipeline: script text or an audio clip is required")
	// ErrAmbiguousAudioSource is returned when both script text and an
	// audio clip are supplied; exactly one branch runs per pipeline.
	ErrAmbiguousAudioSource = errors.New("pipeline: provide script text or an audio clip, not both")
	// ErrSynthesizerRequired is returned when script text is supplied but
	// no speech synthesizer is configured.
	ErrSynthesizerRequired = errors.New("pipeline: no speech synthesizer configured for script text input")
)

// Synthesizer converts text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AvatarProvider is the subset of the video-provider API the pipeline
// drives. heygen.Client satisfies it.
type AvatarProvider interface {
	UploadAsset(ctx context.Context, data []byte, contentType, name string) (string, error)
	CreateAvatarGroup(ctx context.Context, name, imageKey string) (string, error)
	ListAvatars(ctx context.Context, groupID string) ([]heygen.Avatar, error)
	AddMotion(ctx context.Context, avatarID, prompt, motionType string) (string, error)
	GenerateVideo(ctx context.Context, req heygen.VideoRequest) (string, error)
	VideoStatus(ctx context.Context, videoID string) (heygen.VideoState, error)
}

// Input is one run's request: an avatar image plus exactly one audio
// source, either script text to synthesize or pre-recorded audio bytes.
type Input struct {
	// ImageData is the still image the avatar is built from.
	ImageData []byte
	// ImageName is the image's file name, used for content-type inference
	// and logging.
	ImageName string
	// ScriptText, when non-empty, selects the synthesized-audio branch.
	ScriptText string
	// AudioData, when non-empty, selects the supplied-audio branch.
	AudioData []byte
	// AudioName is the audio clip's file name.
	AudioName string
}

// ProgressFunc receives monotonically non-decreasing progress checkpoints.
// The percentage is a UX estimate only and carries no control semantics.
type ProgressFunc func(percent int, message string)

// Orchestrator drives the full pipeline. It holds no per-run state;
// a single Orchestrator can serve sequential and concurrent runs.
type Orchestrator struct {
	avatar     AvatarProvider
	speech     Synthesizer
	logger     *slog.Logger
	progress   ProgressFunc
	avatarPoll poll.Options
	videoPoll  time.Duration

	width        int
	height       int
	groupName    string
	motionPrompt string
	motionType   string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the progress checkpoint callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithAvatarPollOptions overrides the avatar-readiness polling policy.
func WithAvatarPollOptions(opts poll.Options) Option {
	return func(o *Orchestrator) {
		o.avatarPoll = opts
	}
}

// WithVideoPollInterval overrides the pause between video-status checks.
func WithVideoPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.videoPoll = d
	}
}

// WithDimensions overrides the output video dimensions.
func WithDimensions(width, height int) Option {
	return func(o *Orchestrator) {
		o.width = width
		o.height = height
	}
}

// WithGroupName overrides the avatar group display name.
func WithGroupName(name string) Option {
	return func(o *Orchestrator) {
		o.groupName = name
	}
}

// WithMotion overrides the motion prompt and motion style.
func WithMotion(prompt, motionType string) Option {
	return func(o *Orchestrator) {
		o.motionPrompt = prompt
		o.motionType = motionType
	}
}

// New creates an Orchestrator. The avatar provider is required; the speech
// synthesizer may be nil when only the supplied-audio branch is used.
func New(avatar AvatarProvider, speech Synthesizer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		avatar:       avatar,
		speech:       speech,
		logger:       logger,
		avatarPoll:   poll.DefaultOptions(),
		videoPoll:    poll.DefaultInterval,
		width:        DefaultWidth,
		height:       DefaultHeight,
		groupName:    DefaultGroupName,
		motionPrompt: DefaultMotionPrompt,
		motionType:   DefaultMotionType,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes one pipeline: audio branch, image upload, avatar group,
// base and motion avatars, audio upload, video generation, render poll.
// It returns the rendered video's URL. Any stage failure aborts the run
// and the error message surfaces to the caller unchanged; there is no
// whole-pipeline retry.
func (o *Orchestrator) Run(ctx context.Context, in Input) (string, error) {
	if err := o.validate(in); err != nil {
		return "", err
	}

	tr := &tracker{fn: o.progress}
	tr.report(0, "run starting")
	tr.report(5, "run started")

	audioData, audioName, err := o.resolveAudio(ctx, in, tr)
	if err != nil {
		return "", err
	}

	o.logger.Info("uploading avatar image",
		slog.String("stage", "upload image"),
		slog.String("name", in.ImageName),
	)
	imageType := media.ContentTypeFor(in.ImageName, "image/jpeg")
	imageKey, err := o.avatar.UploadAsset(ctx, in.ImageData, imageType, in.ImageName)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	o.logger.Info("avatar image uploaded",
		slog.String("stage", "upload image"),
		slog.String("asset_id", imageKey),
	)
	tr.report(30, "avatar image uploaded")

	groupID, err := o.avatar.CreateAvatarGroup(ctx, o.groupName, imageKey)
	if err != nil {
		return "", fmt.Errorf("create avatar group: %w", err)
	}
	o.logger.Info("avatar group created",
		slog.String("stage", "create group"),
		slog.String("group_id", groupID),
	)
	tr.report(40, "avatar group created")

	baseID, err := o.resolveBaseAvatar(ctx, groupID)
	if err != nil {
		return "", err
	}

	if err := o.awaitAvatar(ctx, groupID, baseID, "await base avatar"); err != nil {
		return "", err
	}
	tr.report(55, "base avatar ready")

	motionID, err := o.avatar.AddMotion(ctx, baseID, o.motionPrompt, o.motionType)
	if err != nil {
		return "", fmt.Errorf("add motion: %w", err)
	}
	o.logger.Info("motion avatar created",
		slog.String("stage", "add motion"),
		slog.String("avatar_id", motionID),
	)

	if err := o.awaitAvatar(ctx, groupID, motionID, "await motion avatar"); err != nil {
		return "", err
	}
	tr.report(70, "motion avatar ready")

	audioType := media.ContentTypeFor(audioName, "audio/mpeg")
	audioAssetID, err := o.avatar.UploadAsset(ctx, audioData, audioType, audioName)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	o.logger.Info("audio uploaded",
		slog.String("stage", "upload audio"),
		slog.String("asset_id", audioAssetID),
	)
	tr.report(80, "audio uploaded")

	videoID, err := o.avatar.GenerateVideo(ctx, heygen.VideoRequest{
		TalkingPhotoID: motionID,
		AudioAssetID:   audioAssetID,
		Width:          o.width,
		Height:         o.height,
	})
	if err != nil {
		return "", fmt.Errorf("generate video: %w", err)
	}
	o.logger.Info("video generation requested",
		slog.String("stage", "generate video"),
		slog.String("video_id", videoID),
	)
	tr.report(90, "video generation requested")

	videoURL, err := o.awaitVideo(ctx, videoID, tr)
	if err != nil {
		return "", err
	}

	tr.report(100, "video ready")
	o.logger.Info("run completed",
		slog.String("video_id", videoID),
		slog.String("video_url", videoURL),
	)

	return videoURL, nil
}

// validate rejects incomplete input before any side effect occurs.
func (o *Orchestrator) validate(in Input) error {
	if len(in.ImageData) == 0 {
		return ErrImageRequired
	}

	hasText := strings.TrimSpace(in.ScriptText) != ""
	hasAudio := len(in.AudioData) > 0
	switch {
	case hasText && hasAudio:
		return ErrAmbiguousAudioSource
	case !hasText && !hasAudio:
		return ErrAudioSourceRequired
	}

	if hasText && o.speech == nil {
		return ErrSynthesizerRequired
	}
	return nil
}

// resolveAudio materializes the run's audio: the synthesized branch when
// script text is present, otherwise the supplied clip as-is.
func (o *Orchestrator) resolveAudio(ctx context.Context, in Input, tr *tracker) ([]byte, string, error) {
	if strings.TrimSpace(in.ScriptText) != "" {
		o.logger.Info("synthesizing speech",
			slog.String("stage", "synthesize"),
			slog.Int("text_len", len(in.ScriptText)),
		)
		data, err := o.speech.Synthesize(ctx, in.ScriptText)
		if err != nil {
			return nil, "", fmt.Errorf("synthesize speech: %w", err)
		}
		o.logger.Info("speech synthesized",
			slog.String("stage", "synthesize"),
			slog.Int("bytes", len(data)),
		)
		tr.report(20, "speech synthesized")
		return data, fmt.Sprintf("tts_%d.mp3", time.Now().Unix()), nil
	}

	name := in.AudioName
	if name == "" {
		name = "audio.mp3"
	}
	tr.report(15, "using supplied audio clip")
	return in.AudioData, name, nil
}

// resolveBaseAvatar lists the group's avatars and takes the first entry.
func (o *Orchestrator) resolveBaseAvatar(ctx context.Context, groupID string) (string, error) {
	avatars, err := o.avatar.ListAvatars(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("resolve base avatar: %w", err)
	}
	if len(avatars) == 0 {
		return "", fmt.Errorf("resolve base avatar: %w for group %s", heygen.ErrEmptyAvatarList, groupID)
	}
	if avatars[0].ID == "" {
		return "", fmt.Errorf("resolve base avatar: first avatar of group %s has no id", groupID)
	}
	o.logger.Info("base avatar resolved",
		slog.String("stage", "resolve base avatar"),
		slog.String("avatar_id", avatars[0].ID),
	)
	return avatars[0].ID, nil
}

// awaitAvatar polls the group's avatar list until the avatar completes.
// Per-attempt list errors are fatal here; only the video-render poll
// tolerates them.
func (o *Orchestrator) awaitAvatar(ctx context.Context, groupID, avatarID, stage string) error {
	o.logger.Info("waiting for avatar to complete",
		slog.String("stage", stage),
		slog.String("avatar_id", avatarID),
	)

	fetch := func(ctx context.Context) (string, heygen.Avatar, error) {
		avatars, err := o.avatar.ListAvatars(ctx, groupID)
		if err != nil {
			return "", heygen.Avatar{}, fmt.Errorf("%s: list avatars: %w", stage, err)
		}
		for _, av := range avatars {
			if av.ID == avatarID {
				if av.Status == "" {
					return string(heygen.AvatarUnknown), av, nil
				}
				return string(av.Status), av, nil
			}
		}
		return string(heygen.AvatarUnknown), heygen.Avatar{ID: avatarID}, nil
	}

	_, err := poll.Until(ctx, o.avatarPoll, fetch,
		func(s string) bool { return s == string(heygen.AvatarCompleted) },
		func(s string) bool { return s == string(heygen.AvatarFailed) },
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", stage, avatarID, err)
	}

	o.logger.Info("avatar completed",
		slog.String("stage", stage),
		slog.String("avatar_id", avatarID),
	)
	return nil
}

// awaitVideo polls the video job until it is completed with a published
// result URL. A completed status without a URL is treated as not yet
// ready. The poll is unbounded and tolerates transient fetch errors;
// rendering is the longest and least predictable stage. While waiting it
// feeds a synthetic rendering estimate, capped at 99 until completion.
func (o *Orchestrator) awaitVideo(ctx context.Context, videoID string, tr *tracker) (string, error) {
	o.logger.Info("waiting for video render",
		slog.String("stage", "await video"),
		slog.String("video_id", videoID),
	)

	rendering := 90
	fetch := func(ctx context.Context) (string, heygen.VideoState, error) {
		state, err := o.avatar.VideoStatus(ctx, videoID)
		if err != nil {
			return "", heygen.VideoState{}, err
		}

		if state.Status == heygen.VideoCompleted && state.VideoURL == "" {
			o.logger.Warn("video completed but URL not yet published, re-polling",
				slog.String("video_id", videoID),
			)
			return string(heygen.VideoProcessing), state, nil
		}

		if !state.Status.IsTerminal() {
			if rendering < 99 {
				rendering++
			}
			tr.report(rendering, "video rendering")
			o.logger.Info("video rendering",
				slog.String("video_id", videoID),
				slog.String("status", string(state.Status)),
			)
		}
		return string(state.Status), state, nil
	}

	opts := poll.Options{
		Interval:       o.videoPoll,
		MaxAttempts:    0,
		TolerateErrors: true,
		Logger:         o.logger,
	}
	state, err := poll.Until(ctx, opts, fetch,
		func(s string) bool { return s == string(heygen.VideoCompleted) },
		func(s string) bool { return s == string(heygen.VideoFailed) },
	)
	if err != nil {
		if errors.Is(err, poll.ErrJobFailed) && state.Error != "" {
			return "", fmt.Errorf("await video %s: %w: %s", videoID, poll.ErrJobFailed, state.Error)
		}
		return "", fmt.Errorf("await video %s: %w", videoID, err)
	}

	return state.VideoURL, nil
}

// tracker clamps progress so reported checkpoints never go backward
// within a run. Each Run creates its own tracker; the reset to zero
// happens only at run start.
type tracker struct {
	fn   ProgressFunc
	last int
}

func (t *tracker) report(percent int, message string) {
	if t.fn == nil {
		return
	}
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	t.fn(percent, message)
}
