package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// RecordingSampleRate and RecordingSeconds describe the silent clip
// WriteRecording produces.
const (
	RecordingSampleRate = 16000
	RecordingSeconds    = 1
)

// RecordingBytes is the size of every file WriteRecording writes: a 44-byte
// WAV header followed by 16-bit mono samples.
const RecordingBytes = 44 + RecordingSampleRate*RecordingSeconds*2

// WriteRecording writes one second of silent 16kHz mono PCM to
// <baseDir>/recordings/<name> and returns the path. The bytes are WAV
// whatever the extension, which is enough for the resolver and fake speech
// services.
func WriteRecording(t testing.TB, baseDir, name string) string {
	t.Helper()
	path := filepath.Join(baseDir, "recordings", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, silentWAV(RecordingSampleRate*RecordingSeconds), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func silentWAV(samples int) []byte {
	data := uint32(samples * 2)
	header := make([]byte, 44, 44+int(data))
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], 36+data)
	copy(header[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], 1) // mono
	binary.LittleEndian.PutUint32(header[24:], RecordingSampleRate)
	binary.LittleEndian.PutUint32(header[28:], RecordingSampleRate*2)
	binary.LittleEndian.PutUint16(header[32:], 2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], data)
	return append(header, make([]byte, data)...)
}
