package domain

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Recording filenames follow the upstream telephony recorder convention:
// {staffCode}-{clientIdentifier}_{YYYYMMDDHHMMSS}_mix.{ext}
var recordingNamePattern = regexp.MustCompile(`^(\d+)-(\d+)_(\d{14})_mix\.([A-Za-z0-9]+)$`)

// Client identifiers with at least this many digits are read as phone
// numbers; shorter ones are internal client codes. Calibrated against the
// regional numbering plan the recorder operates in.
const phoneDigitThreshold = 9

var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".flac": {},
	".ogg":  {},
}

// IsAudioFile reports whether the base filename carries a recognized
// recording extension.
func IsAudioFile(name string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ParsedFilename is the identity metadata recovered from a conforming
// recording filename.
type ParsedFilename struct {
	StaffCode        string
	ClientIdentifier string
	IsPhoneNumber    bool
	CallTime         time.Time
	FileName         string
}

// ParseRecordingFilename decodes a recorder-convention filename. A name that
// does not match the convention yields ok=false, never an error: files with
// foreign names are still ingested, just without resolved identity.
func ParseRecordingFilename(name string) (ParsedFilename, bool) {
	if !IsAudioFile(name) {
		return ParsedFilename{}, false
	}
	m := recordingNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedFilename{}, false
	}
	callTime, err := time.ParseInLocation("20060102150405", m[3], time.Local)
	if err != nil {
		// 14 digits that do not form a real timestamp, e.g. month 13.
		return ParsedFilename{}, false
	}
	return ParsedFilename{
		StaffCode:        m[1],
		ClientIdentifier: m[2],
		IsPhoneNumber:    len(m[2]) >= phoneDigitThreshold,
		CallTime:         callTime,
		FileName:         name,
	}, true
}
