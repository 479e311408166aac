package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// buildWAV assembles a canonical RIFF/WAVE byte stream with the given byte
// rate and data payload size. The payload itself is zeroed.
func buildWAV(byteRate, dataSize uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // pcm
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16000))
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func TestWavDuration(t *testing.T) {
	// 32000 bytes/s, 64000 bytes of samples: two seconds.
	d, err := wavDuration(buildWAV(32000, 64000))
	if err != nil {
		t.Fatalf("wavDuration() error = %v", err)
	}
	if d != 2*time.Second {
		t.Fatalf("expected 2s, got %v", d)
	}
}

func TestWavDurationFractionalSeconds(t *testing.T) {
	d, err := wavDuration(buildWAV(32000, 48000))
	if err != nil {
		t.Fatalf("wavDuration() error = %v", err)
	}
	if d != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v", d)
	}
}

func TestWavDurationRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("not audio at all"),
		[]byte("RIFF\x00\x00\x00\x00JUNK"),
	}
	for _, data := range cases {
		if _, err := wavDuration(data); err == nil {
			t.Fatalf("expected error for %q", data)
		}
	}
}

func TestProbeDurationReadsWAVWithoutFFprobe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	if err := os.WriteFile(path, buildWAV(32000, 32000*125+12800), 0o600); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	// A bogus ffprobe path proves the WAV branch never shells out.
	prober := NewProber("/nonexistent/ffprobe", time.Second)
	d, err := prober.ProbeDuration(context.Background(), path)
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if got := int(d.Seconds()); got != 125 {
		t.Fatalf("expected ~125s, got %v", d)
	}
}

func TestProbeDurationFailsClosedOnMissingTooling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.mp3")
	if err := os.WriteFile(path, []byte("not really mp3"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	prober := NewProber("/nonexistent/ffprobe", time.Second)
	if _, err := prober.ProbeDuration(context.Background(), path); err == nil {
		t.Fatalf("expected error when ffprobe is unavailable")
	}
}
