package episode

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"podsearch/internal/services"
)

const (
	// DateLayout is the publish-date component of an audio file name.
	DateLayout = "2006-01-02"
	// StampLayout is the UTC download-time component of a re-downloaded file name.
	StampLayout = "20060102T150405Z"

	separator = "__"
)

// LockfileKey is the storage key of the shared transcription lockfile.
const LockfileKey = "locks/transcription-lockfile.json"

var audioExtensions = map[string]struct{}{
	"mp3": {}, "m4a": {}, "wav": {}, "ogg": {}, "opus": {}, "flac": {}, "aac": {},
}

// ErrInvalidKey reports an audio key that does not follow the naming scheme.
var ErrInvalidKey = fmt.Errorf("%w: invalid audio key", services.ErrDataIntegrity)

// SourceFileKey identifies one downloaded audio file:
// audio/{collection}/{publishDate}__{titleSlug}[__{downloadedAt}].{ext}.
// Values are immutable.
type SourceFileKey struct {
	Collection   string
	PublishDate  time.Time
	Slug         string
	DownloadedAt time.Time
	Ext          string
}

// ParseSourceFileKey validates and decomposes an audio storage key.
func ParseSourceFileKey(key string) (SourceFileKey, error) {
	var k SourceFileKey
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "audio" || parts[1] == "" {
		return k, fmt.Errorf("%w: %q: want audio/{collection}/{file}", ErrInvalidKey, key)
	}
	k.Collection = parts[1]

	name := parts[2]
	ext := path.Ext(name)
	if ext == "" {
		return k, fmt.Errorf("%w: %q: missing extension", ErrInvalidKey, key)
	}
	k.Ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := audioExtensions[k.Ext]; !ok {
		return k, fmt.Errorf("%w: %q: unsupported extension %q", ErrInvalidKey, key, k.Ext)
	}

	if err := k.parseBase(key, strings.TrimSuffix(name, ext)); err != nil {
		return k, err
	}
	return k, nil
}

// ParseTranscriptKey decomposes transcripts/{collection}/{base}.srt. The
// result carries no audio extension, so only its artifact keys and episode
// key are meaningful.
func ParseTranscriptKey(key string) (SourceFileKey, error) {
	var k SourceFileKey
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "transcripts" || parts[1] == "" || path.Ext(parts[2]) != ".srt" {
		return k, fmt.Errorf("%w: %q: want transcripts/{collection}/{file}.srt", ErrInvalidKey, key)
	}
	k.Collection = parts[1]
	if err := k.parseBase(key, strings.TrimSuffix(parts[2], ".srt")); err != nil {
		return k, err
	}
	return k, nil
}

func (k *SourceFileKey) parseBase(key, base string) error {
	segments := strings.Split(base, separator)
	if len(segments) < 2 || len(segments) > 3 {
		return fmt.Errorf("%w: %q: want {date}__{title}[__{downloadedAt}]", ErrInvalidKey, key)
	}
	date, err := time.Parse(DateLayout, segments[0])
	if err != nil {
		return fmt.Errorf("%w: %q: publish date: %v", ErrInvalidKey, key, err)
	}
	k.PublishDate = date
	k.Slug = segments[1]
	if k.Slug == "" {
		return fmt.Errorf("%w: %q: empty title", ErrInvalidKey, key)
	}
	if len(segments) == 3 {
		stamp, err := time.Parse(StampLayout, segments[2])
		if err != nil {
			return fmt.Errorf("%w: %q: download stamp: %v", ErrInvalidKey, key, err)
		}
		k.DownloadedAt = stamp
	}
	return nil
}

// IsAudioKey reports whether key parses as a SourceFileKey.
func IsAudioKey(key string) bool {
	_, err := ParseSourceFileKey(key)
	return err == nil
}

// String reconstructs the storage key.
func (k SourceFileKey) String() string {
	return AudioPrefix(k.Collection) + "/" + k.BaseName() + "." + k.Ext
}

// EpisodeKey identifies the logical episode independent of re-downloads.
func (k SourceFileKey) EpisodeKey() string {
	return k.PublishDate.Format(DateLayout) + separator + k.Slug
}

// BaseName is the file name without extension, including any download stamp.
// Derived artifacts use it so each downloaded copy owns its transcript.
func (k SourceFileKey) BaseName() string {
	base := k.EpisodeKey()
	if !k.DownloadedAt.IsZero() {
		base += separator + k.DownloadedAt.UTC().Format(StampLayout)
	}
	return base
}

// HasDownloadStamp reports whether the file name carries a download time.
func (k SourceFileKey) HasDownloadStamp() bool {
	return !k.DownloadedAt.IsZero()
}

// TranscriptKey is where the combined subtitle document is stored.
func (k SourceFileKey) TranscriptKey() string {
	return TranscriptsPrefix(k.Collection) + "/" + k.BaseName() + ".srt"
}

// EntriesKey is where the extracted search entries are stored.
func (k SourceFileKey) EntriesKey() string {
	return EntriesPrefix(k.Collection) + "/" + k.BaseName() + ".json"
}

// AudioPrefix lists a collection's audio files.
func AudioPrefix(collection string) string { return "audio/" + collection }

// TranscriptsPrefix lists a collection's subtitle documents.
func TranscriptsPrefix(collection string) string { return "transcripts/" + collection }

// EntriesPrefix lists a collection's search-entry documents.
func EntriesPrefix(collection string) string { return "search-entries/" + collection }

// IndexKey is the persisted index file of a collection.
func IndexKey(collection string) string { return "search-index/" + collection + ".bin" }

// ManifestKey is the episode manifest of a collection.
func ManifestKey(collection string) string { return "manifests/" + collection + ".json" }

// ValidateCollection rejects identifiers that would escape the key layout.
func ValidateCollection(collection string) error {
	switch {
	case strings.TrimSpace(collection) == "":
		return errors.New("collection is required")
	case strings.ContainsAny(collection, `/\`), strings.Contains(collection, ".."):
		return fmt.Errorf("collection %q must not contain path separators", collection)
	}
	return nil
}
