package heygen

import "encoding/json"

// AvatarStatus is the processing state of a photo avatar, base or motion.
type AvatarStatus string

// Avatar statuses reported by the avatar-list endpoint.
const (
	AvatarPending    AvatarStatus = "pending"
	AvatarProcessing AvatarStatus = "processing"
	AvatarCompleted  AvatarStatus = "completed"
	AvatarFailed     AvatarStatus = "failed"
	AvatarUnknown    AvatarStatus = "unknown"
)

// IsTerminal returns true if the status represents a final state.
func (s AvatarStatus) IsTerminal() bool {
	return s == AvatarCompleted || s == AvatarFailed
}

// Avatar is one entry of an avatar group's avatar list.
type Avatar struct {
	// ID identifies the avatar (talking photo) within the group.
	ID string `json:"id"`
	// Status is the avatar's processing state.
	Status AvatarStatus `json:"status"`
}

// VideoStatus is the state of a video generation job.
type VideoStatus string

// Video job statuses reported by the video-status endpoint.
const (
	VideoQueued     VideoStatus = "queued"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
	VideoUnknown    VideoStatus = "unknown"
)

// IsTerminal returns true if the status represents a final state.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoCompleted || s == VideoFailed
}

// VideoState is the result of one video-status check.
type VideoState struct {
	// Status is the job's current state.
	Status VideoStatus
	// VideoURL is the rendered result location, set once the provider
	// has finished publishing it. A completed status may briefly carry
	// an empty URL; callers must treat that as not yet ready.
	VideoURL string
	// Error is the provider's failure detail, if any.
	Error string
}

// VideoRequest describes one video-generation submission: a motion-enabled
// talking photo speaking a previously uploaded audio asset.
type VideoRequest struct {
	// TalkingPhotoID is the motion avatar driving the video.
	TalkingPhotoID string
	// AudioAssetID is the uploaded audio asset to lip-sync against.
	AudioAssetID string
	// Width and Height are the output dimensions in pixels.
	Width  int
	Height int
	// BackgroundColor is a hex color for the flat background.
	BackgroundColor string
}

// assetIDKeys lists the response fields that may carry an uploaded asset's
// identifier, in the order they are tried. The upload endpoint uses
// different key names depending on the asset kind.
var assetIDKeys = []string{"image_key", "id", "asset_id", "audio_asset_id"}

// Wire types. Every JSON endpoint wraps its payload in a "data" object.

type uploadResponse struct {
	Data map[string]any `json:"data"`
}

type createGroupRequest struct {
	Name     string `json:"name"`
	ImageKey string `json:"image_key"`
}

type createGroupResponse struct {
	Data struct {
		GroupID string `json:"group_id"`
	} `json:"data"`
}

type avatarListResponse struct {
	Data struct {
		AvatarList []Avatar `json:"avatar_list"`
	} `json:"data"`
}

type addMotionRequest struct {
	ID         string `json:"id"`
	MotionType string `json:"motion_type"`
	Prompt     string `json:"prompt"`
}

type addMotionResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type videoGenerateRequest struct {
	VideoInputs   []videoInput  `json:"video_inputs"`
	Dimension     dimension     `json:"dimension"`
	CaptionConfig captionConfig `json:"caption_config"`
}

type videoInput struct {
	Character  character  `json:"character"`
	Voice      voice      `json:"voice"`
	Background background `json:"background"`
}

type character struct {
	Type           string `json:"type"`
	TalkingPhotoID string `json:"talking_photo_id"`
}

type voice struct {
	Type         string      `json:"type"`
	AudioAssetID string      `json:"audio_asset_id"`
	AudioConfig  audioConfig `json:"audio_config"`
}

type audioConfig struct {
	SpeakingRate float64 `json:"speaking_rate"`
	VolumeGainDB float64 `json:"volume_gain_db"`
}

type background struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type captionConfig struct {
	Enabled bool `json:"enabled"`
}

type videoGenerateResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

type videoStatusResponse struct {
	Data struct {
		Status   string          `json:"status"`
		VideoURL string          `json:"video_url"`
		Error    json.RawMessage `json:"error"`
	} `json:"data"`
}
