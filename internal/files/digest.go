package files

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// digestLen is how many bytes of the BLAKE3 sum are shown to users.
const digestLen = 16

// Digest hashes bytes as they pass through a transfer so both ends can
// compare a short fingerprint.
type Digest struct {
	h *blake3.Hasher
}

func NewDigest() *Digest {
	return &Digest{h: blake3.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// String returns the hex fingerprint.
func (d *Digest) String() string {
	return hex.EncodeToString(d.h.Sum(nil)[:digestLen])
}

// DigestFile fingerprints the file at path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := NewDigest()
	if _, err := io.Copy(d, f); err != nil {
		return "", err
	}
	return d.String(), nil
}

// DigestBytes fingerprints data.
func DigestBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:digestLen])
}
