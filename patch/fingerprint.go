package patch

import (
	"golang.org/x/crypto/sha3"
)

// Fingerprint hashes the enabled patches of a set. Two peers with the same
// fingerprint write the same values to the same addresses every frame.
// Names take part in the hash; order does too.
func Fingerprint(patches []Patch) [32]byte {
	h := sha3.New256()

	for _, p := range patches {
		if !p.Enabled {
			continue
		}

		_, _ = h.Write([]byte(MarkerLine(p.Name)))
		_, _ = h.Write([]byte{'\n'})
		for _, e := range p.Entries {
			_, _ = h.Write([]byte(SerializeEntry(e)))
			_, _ = h.Write([]byte{'\n'})
		}
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
