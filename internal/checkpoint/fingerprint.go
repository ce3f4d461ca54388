package checkpoint

import (
	"os"
	"slices"
	"time"
)

// Fingerprint identifies the content of an input table by size and
// modification time. It does not depend on the path used to reach the file.
type Fingerprint struct {
	Size    int64
	ModTime time.Time
}

// StatFile fingerprints the file at path.
func StatFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Matches reports whether f and other describe the same input.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}

// OutputIntact reports whether saved progress still describes what is on
// disk: outputs must name the same destinations the progress was written to,
// and the result file (outputs[0]) must hold at least Offset bytes.
func (p Progress) OutputIntact(outputs []string) bool {
	if len(outputs) == 0 || !slices.Equal(p.Outputs, outputs) {
		return false
	}
	info, err := os.Stat(outputs[0])
	return err == nil && !info.IsDir() && info.Size() >= p.Offset
}
