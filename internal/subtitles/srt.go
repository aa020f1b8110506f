package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Entry is one subtitle cue. Times are relative to the start of the full,
// unchunked audio once entries have been combined.
type Entry struct {
	SequenceID   int     `json:"sequenceId"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"startSeconds"`
	EndSeconds   float64 `json:"endSeconds"`
}

// Parse reads SRT text. Cues whose timing line is missing or unparseable are
// dropped and counted. Cues without a numeric header are numbered by position.
func Parse(text string) ([]Entry, int) {
	blocks := splitBlocks(strings.ReplaceAll(text, "\r\n", "\n"))
	entries := make([]Entry, 0, len(blocks))
	dropped := 0
	for i, block := range blocks {
		entry, ok := parseBlock(block, i+1)
		if !ok {
			dropped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, dropped
}

func parseBlock(block string, ordinal int) (Entry, bool) {
	lines := strings.Split(block, "\n")
	idx := 0
	seq := ordinal
	if idx < len(lines) && isNumeric(lines[idx]) {
		seq, _ = strconv.Atoi(strings.TrimSpace(lines[idx]))
		idx++
	}
	if idx >= len(lines) || !strings.Contains(lines[idx], "-->") {
		return Entry{}, false
	}
	parts := strings.SplitN(lines[idx], "-->", 2)
	start, errStart := parseSRTTimestamp(parts[0])
	end, errEnd := parseSRTTimestamp(parts[1])
	if errStart != nil || errEnd != nil {
		return Entry{}, false
	}
	textLines := make([]string, 0, len(lines)-idx-1)
	for _, line := range lines[idx+1:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			textLines = append(textLines, trimmed)
		}
	}
	return Entry{
		SequenceID:   seq,
		StartTime:    FormatTimestamp(start),
		EndTime:      FormatTimestamp(end),
		Text:         strings.Join(textLines, "\n"),
		StartSeconds: start,
		EndSeconds:   end,
	}, true
}

// Format renders entries as SRT, numbering them with their SequenceID.
func Format(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", e.SequenceID, FormatTimestamp(e.StartSeconds), FormatTimestamp(e.EndSeconds), e.Text)
	}
	return b.String()
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMs := int64(math.Round(seconds * 1000))
	ms := totalMs % 1000
	totalSec := totalMs / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", totalSec/3600, (totalSec%3600)/60, totalSec%60, ms)
}

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	var blocks []string
	var current []string
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Normalize period to comma (SRT standard uses comma for milliseconds)
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	fraction := timeParts[1]
	if fraction == "" {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	// "01,5" is half a second, not five milliseconds.
	if len(fraction) < 3 {
		fraction += strings.Repeat("0", 3-len(fraction))
	}
	millis, errMS := strconv.Atoi(fraction)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
