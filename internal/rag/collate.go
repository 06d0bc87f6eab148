package rag

// collector accumulates ranked hits into a SearchResult.
type collector struct {
	res  SearchResult
	seen map[string]struct{}
}

// newCollector returns a collector whose result slices are non-nil, so an
// empty search encodes as {"contexts":[],"sources":[]}.
func newCollector() *collector {
	return &collector{
		res: SearchResult{
			Contexts: []string{},
			Sources:  []string{},
		},
		seen: make(map[string]struct{}),
	}
}

// add records one hit. Hits without text are skipped along with their source.
func (c *collector) add(text, source string) {
	if text == "" {
		return
	}
	c.res.Contexts = append(c.res.Contexts, text)
	if _, ok := c.seen[source]; ok {
		return
	}
	c.seen[source] = struct{}{}
	c.res.Sources = append(c.res.Sources, source)
}

// result returns the collated search result.
func (c *collector) result() *SearchResult {
	return &c.res
}

// payloadString returns p[key] when it holds a string, or "".
func payloadString(p Payload, key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}
