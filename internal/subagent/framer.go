package subagent

import "strings"

// lineFramer reassembles complete lines from arbitrarily chunked stream
// reads. A line may arrive split across any number of chunks, and one chunk
// may carry any number of lines; the framer hides both from the decoder.
type lineFramer struct {
	tail string // bytes after the last newline seen so far
}

// feed appends a chunk and returns every newly completed line, in order.
// Returned lines have the trailing newline (and any carriage return)
// stripped. Partial data is retained for the next call.
func (f *lineFramer) feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	buf := f.tail + chunk
	parts := strings.Split(buf, "\n")
	f.tail = parts[len(parts)-1]
	lines := parts[:len(parts)-1]
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// flush returns any final unterminated line at end of stream. The second
// return is false when no partial data was pending.
func (f *lineFramer) flush() (string, bool) {
	if f.tail == "" {
		return "", false
	}
	line := strings.TrimSuffix(f.tail, "\r")
	f.tail = ""
	return line, true
}
