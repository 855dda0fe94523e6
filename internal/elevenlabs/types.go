package elevenlabs

// DefaultModelID is the multilingual model used when none is configured.
const DefaultModelID = "eleven_multilingual_v2"

// VoiceSettings are the voice-shaping parameters sent with every
// synthesis request. They are static configuration, not per-call input.
type VoiceSettings struct {
	// Stability controls delivery consistency (0-1).
	Stability float64 `json:"stability"`
	// SimilarityBoost controls closeness to the reference voice (0-1).
	SimilarityBoost float64 `json:"similarity_boost"`
	// Style controls expressiveness (0-1).
	Style float64 `json:"style"`
	// UseSpeakerBoost enables the provider's speaker-boost processing.
	UseSpeakerBoost bool `json:"use_speaker_boost"`
	// Speed scales speaking rate; 1.0 is the voice's native pace.
	Speed float64 `json:"speed"`
}

// DefaultVoiceSettings returns the tuned parameters for narration:
// slightly slower pace, warm delivery.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.30,
		SimilarityBoost: 0.85,
		Style:           0.45,
		UseSpeakerBoost: true,
		Speed:           0.85,
	}
}

// synthesisRequest is the JSON body for the text-to-speech endpoint.
type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}
