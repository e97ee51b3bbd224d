// Package driver enumerates the supported wallet kinds, probes which of them
// are usable right now, and hands out drivers for them.
package driver

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// Kind identifies a wallet driver. The set is closed; adding a kind is a code change.
type Kind string

// Supported wallet kinds.
const (
	KindNone      Kind = ""
	KindFreighter Kind = "freighter"
	KindAlbedo    Kind = "albedo"
)

// MaxTypoDistance is the largest edit distance for which a kind is suggested.
const MaxTypoDistance = 3

// Kinds returns every supported kind in display order.
func Kinds() []Kind {
	return []Kind{KindFreighter, KindAlbedo}
}

// String returns the kind name, or "none" for KindNone.
func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := descriptors[k]
	return ok
}

// DisplayName returns the human-readable wallet name.
func (k Kind) DisplayName() string {
	if d, ok := descriptors[k]; ok {
		return d.DisplayName
	}
	return k.String()
}

// Marker is the environment marker whose presence makes the kind available.
func (k Kind) Marker() string {
	return string(k)
}

// Descriptor describes a wallet kind.
type Descriptor struct {
	Kind        Kind   `json:"kind"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

//nolint:gochecknoglobals // static metadata for the closed set of kinds
var descriptors = map[Kind]Descriptor{
	KindFreighter: {
		Kind:        KindFreighter,
		DisplayName: "Freighter",
		Description: "A browser extension wallet for Stellar",
	},
	KindAlbedo: {
		Kind:        KindAlbedo,
		DisplayName: "Albedo",
		Description: "A web-based wallet for Stellar",
	},
}

// ParseKind parses a wallet kind name, case-insensitively.
// Unknown names fail with UNKNOWN_KIND and, when one is close, a suggestion.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if k.Valid() {
		return k, nil
	}
	return KindNone, unknownKind(name)
}

func unknownKind(name string) error {
	err := anchorerr.WithDetails(anchorerr.ErrUnknownKind, map[string]string{"kind": name})
	if s := SuggestKind(name); s != KindNone {
		return anchorerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	names := make([]string, 0, len(descriptors))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return anchorerr.WithSuggestion(err, "supported kinds: "+strings.Join(names, ", "))
}

// SuggestKind returns the kind closest to input, or KindNone if none is within MaxTypoDistance.
func SuggestKind(input string) Kind {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return KindNone
	}

	minDist := math.MaxInt
	suggestion := KindNone
	for _, k := range Kinds() {
		dist := levenshtein.ComputeDistance(input, string(k))
		if dist < minDist {
			minDist = dist
			suggestion = k
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return KindNone
}
