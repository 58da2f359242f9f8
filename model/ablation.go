package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/siherrmann/carst/helper"
)

// AblationMode selects which encoders supply the relation embeddings.
type AblationMode int

const (
	// AblationFull fuses text and structure with cross attention.
	AblationFull AblationMode = 0
	// AblationText uses the relation descriptions only.
	AblationText AblationMode = 1
	// AblationStructure uses the relation structure graph only.
	AblationStructure AblationMode = 2
	// AblationConcat concatenates text and structure without cross attention.
	AblationConcat AblationMode = 3
	// AblationPlain uses a trainable embedding lookup, no text or structure.
	AblationPlain AblationMode = 4
)

var ablationNames = map[AblationMode]string{
	AblationFull:      "full",
	AblationText:      "text",
	AblationStructure: "structure",
	AblationConcat:    "concat",
	AblationPlain:     "plain",
}

// Valid reports whether m is one of the known modes.
func (m AblationMode) Valid() bool {
	_, ok := ablationNames[m]
	return ok
}

// UsesText reports whether the mode needs the relation description bank.
func (m AblationMode) UsesText() bool {
	return m == AblationFull || m == AblationText || m == AblationConcat
}

// UsesStructure reports whether the mode needs the relation graph encoder.
func (m AblationMode) UsesStructure() bool {
	return m == AblationFull || m == AblationStructure || m == AblationConcat
}

func (m AblationMode) String() string {
	if name, ok := ablationNames[m]; ok {
		return name
	}
	return fmt.Sprintf("AblationMode(%d)", int(m))
}

// ParseAblationMode accepts either a mode name or its integer value.
func ParseAblationMode(s string) (AblationMode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for mode, name := range ablationNames {
		if name == s {
			return mode, nil
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil || !AblationMode(n).Valid() {
		return 0, helper.NewError("parse ablation mode", fmt.Errorf("%w: unknown ablation mode %q", helper.ErrConfiguration, s))
	}
	return AblationMode(n), nil
}

// MarshalText implements encoding.TextMarshaler.
func (m AblationMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, helper.NewError("marshal ablation mode", fmt.Errorf("%w: unknown ablation mode %d", helper.ErrConfiguration, int(m)))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AblationMode) UnmarshalText(text []byte) error {
	mode, err := ParseAblationMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// UnmarshalJSON accepts both `"concat"` and `3`.
func (m *AblationMode) UnmarshalJSON(data []byte) error {
	return m.UnmarshalText(bytes.Trim(data, `"`))
}
