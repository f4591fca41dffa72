package transport

import "strings"

const fence = "```"

// SplitMessage splits text into chunks of at most limit characters,
// breaking only on line boundaries. A split never lands inside a fenced
// code block: when a chunk ends with a fence still open, the fence is
// closed at the end of that chunk and re-opened at the start of the next
// one, so every chunk renders as valid markup on its own.
//
// A single line longer than limit is emitted as its own chunk unsplit;
// the platform decides what to do with it.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	fenceOpen := false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		out := strings.TrimSuffix(cur.String(), "\n")
		if fenceOpen {
			out += "\n" + fence
		}
		chunks = append(chunks, out)
		cur.Reset()
		if fenceOpen {
			cur.WriteString(fence)
			cur.WriteByte('\n')
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if cur.Len() > 0 && cur.Len()+len(line)+1 > limit {
			flush()
		}

		if strings.Count(line, fence)%2 == 1 {
			fenceOpen = !fenceOpen
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}

	if cur.Len() > 0 {
		out := strings.TrimSuffix(cur.String(), "\n")
		chunks = append(chunks, out)
	}
	return chunks
}
