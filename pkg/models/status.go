package models

import (
	"fmt"
	"strings"
)

// ExtractorKind selects which extraction engine variant services a request
type ExtractorKind string

const (
	KindMercury     ExtractorKind = "mercury"
	KindReadability ExtractorKind = "readability"
)

// DefaultExtractorKind is used when a caller does not choose one
const DefaultExtractorKind = KindMercury

// ExtractorKinds lists every supported kind in a stable order
func ExtractorKinds() []ExtractorKind {
	return []ExtractorKind{KindMercury, KindReadability}
}

// ParseExtractorKind maps user input to a kind. Empty input yields the default.
func ParseExtractorKind(s string) (ExtractorKind, error) {
	switch ExtractorKind(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultExtractorKind, nil
	case KindMercury:
		return KindMercury, nil
	case KindReadability:
		return KindReadability, nil
	}
	return "", fmt.Errorf("unknown extractor %q (want mercury or readability)", s)
}

// String implements fmt.Stringer for logging
func (k ExtractorKind) String() string {
	if k == "" {
		return string(DefaultExtractorKind)
	}
	return string(k)
}

// IsValid returns true if the kind is a known engine variant
func (k ExtractorKind) IsValid() bool {
	switch k {
	case KindMercury, KindReadability:
		return true
	}
	return false
}

// EngineState is the readiness of one extraction engine
type EngineState int32

const (
	EngineUninitialized EngineState = iota
	EngineInitializing
	EngineReady
)

// String implements fmt.Stringer for logging
func (s EngineState) String() string {
	switch s {
	case EngineUninitialized:
		return "uninitialized"
	case EngineInitializing:
		return "initializing"
	case EngineReady:
		return "ready"
	}
	return fmt.Sprintf("EngineState(%d)", int32(s))
}
