package ir

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// artifactMagic identifies a Lattice build artifact.
const artifactMagic = "lattice-ir"

// ArtifactVersion is bumped on any incompatible IR change. Decoders
// reject artifacts from other versions; the build is cheap enough to
// redo that no migration path exists.
const ArtifactVersion = 1

type artifact struct {
	Magic   string  `msgpack:"magic"`
	Version int     `msgpack:"version"`
	System  *System `msgpack:"system"`
}

// EncodeArtifact writes the system as a versioned msgpack artifact.
func EncodeArtifact(w io.Writer, sys *System) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(artifact{Magic: artifactMagic, Version: ArtifactVersion, System: sys}); err != nil {
		return fmt.Errorf("lattice: encoding artifact: %w", err)
	}
	return nil
}

// DecodeArtifact reads a versioned msgpack artifact.
func DecodeArtifact(r io.Reader) (*System, error) {
	var a artifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("lattice: decoding artifact: %w", err)
	}
	if a.Magic != artifactMagic {
		return nil, fmt.Errorf("lattice: not a build artifact")
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("lattice: artifact version %d, this build reads %d", a.Version, ArtifactVersion)
	}
	return a.System, nil
}
