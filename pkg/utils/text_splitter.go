package utils

// SplitText cuts a document into overlapping chunks for embedding. The
// overlap keeps a sentence that straddles a boundary retrievable from both
// sides. Rune-based so multi-byte text never gets cut mid-character; when a
// chunk boundary lands inside a word the splitter backs up to the nearest
// whitespace within the overlap window.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		for cut > end-overlap && cut > start+1 && !isSpace(runes[cut-1]) {
			cut--
		}
		if cut <= start+1 {
			cut = end
		}
		chunks = append(chunks, string(runes[start:cut]))
	}

	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
