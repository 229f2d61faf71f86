package chunker

// fixedSpans slides a window of exactly ChunkSize runes advancing by
// ChunkSize-Overlap. The last window may be shorter.
func (c *Chunker) fixedSpans(runes []rune) []span {
	step := c.opts.ChunkSize - c.opts.Overlap
	var out []span
	for start := 0; start < len(runes); start += step {
		end := start + c.opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, span{start: start, end: end})
		if end == len(runes) {
			break
		}
	}
	return out
}
