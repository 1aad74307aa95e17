// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (errors.go, message.go, language.go, transcription.go, etc.)
// with shared types and the collaborator interfaces the orchestration layer depends on. No implementation code.
// Prevents circular imports between app, broadcast and the adapters.
package domain
