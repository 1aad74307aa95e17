// Package app provides the translation orchestration layer.
//
// The Orchestrator owns a ChannelRegistry of LanguageChannels and the
// TranscriptHandoff that carries transcript segments from the transcription
// source to OnTranscript. Each segment is fanned out to every channel
// concurrently; a channel translates it, synthesizes speech and enqueues the
// result on its broadcast manager. Collaborators are domain interfaces, wrapped
// by ResilientTranslator and ResilientSynthesizer in the composition root.
package app
