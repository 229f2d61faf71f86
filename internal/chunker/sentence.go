package chunker

// splitSentences scans runes for sentence boundaries. A sentence ends at a
// terminator (. ! ?) optionally followed by closing quotes or brackets, when
// the next rune is whitespace or the text ends. Text after the last
// terminator forms a final sentence.
func splitSentences(runes []rune) []span {
	var out []span
	start := -1
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if start < 0 {
			if isSpace(r) {
				continue
			}
			start = i
		}
		if !isTerminator(r) {
			continue
		}
		end := i + 1
		for end < len(runes) && isClosing(runes[end]) {
			end++
		}
		if end < len(runes) && !isSpace(runes[end]) {
			i = end - 1
			continue
		}
		out = append(out, span{start: start, end: end})
		start = -1
		i = end - 1
	}
	if start >= 0 {
		sp := trimSpan(runes, span{start: start, end: len(runes)})
		if sp.end > sp.start {
			out = append(out, sp)
		}
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}

// sentenceSpans accumulates whole sentences until adding the next would
// exceed the chunk size, then starts the next chunk at the trailing overlap
// of the previous one. A chunk that holds no sentence yet always accepts
// one, even oversized, so progress is guaranteed.
func (c *Chunker) sentenceSpans(runes []rune) []span {
	sents := splitSentences(runes)
	return accumulateSentences(sents, span{start: 0, end: len(runes)}, c.opts.ChunkSize, c.opts.Overlap)
}

func accumulateSentences(sents []span, whole span, chunkSize, overlap int) []span {
	if len(sents) == 0 {
		return []span{whole}
	}
	var out []span
	cur := sents[0]
	for _, s := range sents[1:] {
		if s.end-cur.start > chunkSize {
			out = append(out, cur)
			start := cur.end - overlap
			if start < cur.start {
				start = cur.start
			}
			cur = span{start: start, end: s.end}
			continue
		}
		cur.end = s.end
	}
	return append(out, cur)
}
