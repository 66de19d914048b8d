package runner

import (
	"io"
	"os"
	"strings"
)

// tailChunk is the first read size; it doubles until enough lines are seen.
var tailChunk int64 = 64 << 10

// TailFile returns the last n non-blank lines of a log file. It reads
// backwards from the end so long-lived gateway logs are never loaded whole.
func TailFile(path string, n int) []string {
	if n <= 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil
	}
	size := info.Size()
	for chunk := tailChunk; ; chunk *= 2 {
		offset := max(size-chunk, 0)
		buf := make([]byte, size-offset)
		if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
			return nil
		}
		text := string(buf)
		if offset > 0 {
			// The first line is likely cut mid-way.
			_, text, _ = strings.Cut(text, "\n")
		}
		lines := nonBlank(text)
		if len(lines) >= n || offset == 0 {
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
			return lines
		}
	}
}

func nonBlank(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
