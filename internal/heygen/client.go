// Package heygen provides the HTTP client for the HeyGen photo-avatar API:
// asset uploads, avatar group management, motion creation, video generation
// and video status checks.
package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Default endpoints. Asset uploads go through a dedicated host.
const (
	defaultAPIBaseURL    = "https://api.heygen.com"
	defaultUploadBaseURL = "https://upload.heygen.com"
)

// Static errors for HeyGen client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("heygen: API key is required")
	// ErrRequestFailed is returned when a JSON endpoint responds non-2xx.
	ErrRequestFailed = errors.New("heygen: request failed")
	// ErrInvalidResponse is returned when a response body cannot be parsed.
	ErrInvalidResponse = errors.New("heygen: invalid response")
	// ErrUploadFailed is returned when the asset upload is rejected.
	ErrUploadFailed = errors.New("heygen: asset upload failed")
	// ErrNoAssetID is returned when an upload response carries none of the
	// expected asset identifier fields.
	ErrNoAssetID = errors.New("heygen: upload returned no asset id")
	// ErrNoGroupID is returned when group creation omits the group id.
	ErrNoGroupID = errors.New("heygen: no group_id in create response")
	// ErrEmptyAvatarList is returned when a group has no avatars.
	ErrEmptyAvatarList = errors.New("heygen: avatar list is empty")
	// ErrNoMotionID is returned when add_motion omits the motion avatar id.
	ErrNoMotionID = errors.New("heygen: no motion id in add_motion response")
	// ErrNoVideoID is returned when video generation omits the video id.
	ErrNoVideoID = errors.New("heygen: no video_id in generate response")
	// ErrVideoURLRequired is returned when a download is attempted
	// without a result URL.
	ErrVideoURLRequired = errors.New("heygen: video URL is required")
)

// Client defines the interface for the HeyGen photo-avatar API.
type Client interface {
	// UploadAsset uploads a binary asset (image or audio) and returns the
	// provider's opaque asset identifier. The name is used only for
	// diagnostics.
	UploadAsset(ctx context.Context, data []byte, contentType, name string) (string, error)

	// CreateAvatarGroup creates a photo avatar group from an uploaded
	// image and returns the group id.
	CreateAvatarGroup(ctx context.Context, name, imageKey string) (string, error)

	// ListAvatars returns the ordered avatar entries of a group.
	ListAvatars(ctx context.Context, groupID string) ([]Avatar, error)

	// AddMotion derives a motion-enabled avatar from a completed base
	// avatar and returns the new avatar's id.
	AddMotion(ctx context.Context, avatarID, prompt, motionType string) (string, error)

	// GenerateVideo submits a video-generation job and returns its id.
	GenerateVideo(ctx context.Context, req VideoRequest) (string, error)

	// VideoStatus checks a video job by id.
	VideoStatus(ctx context.Context, videoID string) (VideoState, error)

	// DownloadVideo fetches a rendered video to a local path.
	DownloadVideo(ctx context.Context, videoURL, destPath string) error
}

// HTTPClient is the HTTP implementation of the HeyGen Client interface.
type HTTPClient struct {
	apiKey        string
	baseURL       string
	uploadBaseURL string
	httpClient    *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the JSON API endpoints.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = u
	}
}

// WithUploadBaseURL sets a custom base URL for the asset upload endpoint.
func WithUploadBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.uploadBaseURL = u
	}
}

// NewClient creates a new HeyGen HTTP client. The API key is required and
// must come from the caller's configuration; nothing is read ambiently.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		apiKey:        apiKey,
		baseURL:       defaultAPIBaseURL,
		uploadBaseURL: defaultUploadBaseURL,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// UploadAsset uploads raw bytes to the asset endpoint with the given
// content type. The asset id is extracted from the response by trying the
// accepted identifier fields in a fixed priority order.
func (c *HTTPClient) UploadAsset(ctx context.Context, data []byte, contentType, name string) (string, error) {
	endpoint := c.uploadBaseURL + "/v1/asset"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("heygen: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("heygen: upload %q: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("heygen: read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrUploadFailed, resp.StatusCode, string(respBody))
	}

	var parsed uploadResponse
	// A successful upload with an unparsable body still counts as a
	// missing asset id, not a transport failure.
	_ = json.Unmarshal(respBody, &parsed)

	if id := extractAssetID(parsed.Data); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoAssetID, string(respBody))
}

// extractAssetID returns the first non-empty string value found under the
// accepted identifier keys, in priority order.
func extractAssetID(data map[string]any) string {
	for _, key := range assetIDKeys {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// CreateAvatarGroup creates a photo avatar group from an uploaded image.
func (c *HTTPClient) CreateAvatarGroup(ctx context.Context, name, imageKey string) (string, error) {
	reqBody := createGroupRequest{
		Name:     name,
		ImageKey: imageKey,
	}

	var resp createGroupResponse
	endpoint := c.baseURL + "/v2/photo_avatar/avatar_group/create"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Data.GroupID == "" {
		return "", ErrNoGroupID
	}
	return resp.Data.GroupID, nil
}

// ListAvatars returns the avatar entries of a group, in provider order.
func (c *HTTPClient) ListAvatars(ctx context.Context, groupID string) ([]Avatar, error) {
	endpoint := fmt.Sprintf("%s/v2/avatar_group/%s/avatars", c.baseURL, url.PathEscape(groupID))

	var resp avatarListResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.AvatarList, nil
}

// AddMotion derives a motion-enabled avatar from a completed base avatar.
func (c *HTTPClient) AddMotion(ctx context.Context, avatarID, prompt, motionType string) (string, error) {
	reqBody := addMotionRequest{
		ID:         avatarID,
		MotionType: motionType,
		Prompt:     prompt,
	}

	var resp addMotionResponse
	endpoint := c.baseURL + "/v2/photo_avatar/add_motion"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Data.ID == "" {
		return "", ErrNoMotionID
	}
	return resp.Data.ID, nil
}

// GenerateVideo submits a video-generation job: the motion avatar speaking
// the uploaded audio on a flat color background, captions disabled.
func (c *HTTPClient) GenerateVideo(ctx context.Context, req VideoRequest) (string, error) {
	bg := req.BackgroundColor
	if bg == "" {
		bg = "#FFFFFF"
	}

	reqBody := videoGenerateRequest{
		VideoInputs: []videoInput{
			{
				Character: character{
					Type:           "talking_photo",
					TalkingPhotoID: req.TalkingPhotoID,
				},
				Voice: voice{
					Type:         "audio",
					AudioAssetID: req.AudioAssetID,
					AudioConfig: audioConfig{
						SpeakingRate: 1.0,
						VolumeGainDB: 0.0,
					},
				},
				Background: background{
					Type:  "color",
					Value: bg,
				},
			},
		},
		Dimension: dimension{
			Width:  req.Width,
			Height: req.Height,
		},
		CaptionConfig: captionConfig{
			Enabled: false,
		},
	}

	var resp videoGenerateResponse
	endpoint := c.baseURL + "/v2/video/generate"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Data.VideoID == "" {
		return "", ErrNoVideoID
	}
	return resp.Data.VideoID, nil
}

// VideoStatus checks a video job by id and maps the provider's status to
// the job status vocabulary.
func (c *HTTPClient) VideoStatus(ctx context.Context, videoID string) (VideoState, error) {
	endpoint := fmt.Sprintf("%s/v1/video_status.get?video_id=%s", c.baseURL, url.QueryEscape(videoID))

	var resp videoStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return VideoState{}, err
	}

	var mapped VideoStatus
	switch resp.Data.Status {
	case "queued":
		mapped = VideoQueued
	case "pending", "waiting", "processing":
		mapped = VideoProcessing
	case "completed":
		mapped = VideoCompleted
	case "failed":
		mapped = VideoFailed
	case "":
		mapped = VideoUnknown
	default:
		mapped = VideoStatus(resp.Data.Status)
	}

	state := VideoState{
		Status:   mapped,
		VideoURL: resp.Data.VideoURL,
	}
	if len(resp.Data.Error) > 0 && string(resp.Data.Error) != "null" {
		state.Error = string(resp.Data.Error)
	}

	return state, nil
}

// DownloadVideo fetches a rendered video from its result URL to destPath.
func (c *HTTPClient) DownloadVideo(ctx context.Context, videoURL, destPath string) error {
	if videoURL == "" {
		return ErrVideoURLRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return fmt.Errorf("heygen: create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heygen: download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heygen: download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("heygen: create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("heygen: copy download data: %w", err)
	}

	return nil
}

// doJSON performs a single JSON request against an API endpoint.
// There is no retry here; polling loops decide what to do with failures.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("heygen: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("heygen: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heygen: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("heygen: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d from %s: %s", ErrRequestFailed, resp.StatusCode, endpoint, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %s from %s", ErrInvalidResponse, string(respBody), endpoint)
		}
	}

	return nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
