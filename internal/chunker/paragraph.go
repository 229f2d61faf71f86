package chunker

// splitParagraphs scans runes for paragraph boundaries: one or more blank
// lines separate paragraphs.
func splitParagraphs(runes []rune) []span {
	var out []span
	start := -1
	newlines := 0
	for i, r := range runes {
		if r == '\n' {
			newlines++
			if newlines >= 2 && start >= 0 {
				sp := trimSpan(runes, span{start: start, end: i})
				if sp.end > sp.start {
					out = append(out, sp)
				}
				start = -1
			}
			continue
		}
		if !isSpace(r) && start < 0 {
			start = i
		}
		if !isSpace(r) {
			newlines = 0
		}
	}
	if start >= 0 {
		sp := trimSpan(runes, span{start: start, end: len(runes)})
		if sp.end > sp.start {
			out = append(out, sp)
		}
	}
	return out
}

// paragraphSpans merges consecutive short paragraphs until near the chunk
// size. A paragraph never splits mid-sentence unless it alone exceeds the
// chunk size, in which case it falls back to sentence accumulation within
// that paragraph.
func (c *Chunker) paragraphSpans(runes []rune) []span {
	paras := splitParagraphs(runes)
	if len(paras) == 0 {
		return []span{{start: 0, end: len(runes)}}
	}

	var out []span
	var cur span
	have := false
	flush := func() {
		if have {
			out = append(out, cur)
			have = false
		}
	}

	for _, p := range paras {
		if p.end-p.start > c.opts.ChunkSize {
			flush()
			sents := splitSentences(runes[p.start:p.end])
			for i := range sents {
				sents[i].start += p.start
				sents[i].end += p.start
			}
			out = append(out, accumulateSentences(sents, p, c.opts.ChunkSize, c.opts.Overlap)...)
			continue
		}
		if !have {
			cur = p
			have = true
			continue
		}
		if p.end-cur.start > c.opts.ChunkSize {
			out = append(out, cur)
			cur = p
			continue
		}
		cur.end = p.end
	}
	flush()
	return out
}
