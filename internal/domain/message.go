package domain

import "encoding/base64"

// Message is the result of one (transcript, language) pipeline run.
// Audio always belongs to TranslatedText of the same run.
type Message struct {
	Language       string
	OriginalText   string
	TranslatedText string
	Audio          []byte
}

// WireMessage is the JSON object delivered to subscribers.
type WireMessage struct {
	Lang           string `json:"lang"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	AudioContent   string `json:"audio_content"`
}

// Wire converts the message into its subscriber representation with base64 audio.
func (m Message) Wire() WireMessage {
	return WireMessage{
		Lang:           m.Language,
		OriginalText:   m.OriginalText,
		TranslatedText: m.TranslatedText,
		AudioContent:   base64.StdEncoding.EncodeToString(m.Audio),
	}
}
