package telemetry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Batch is an ordered snapshot of items drained from a queue at flush
// time. Summaries with identical merge keys are collapsed by summing
// counts; events pass through untouched.
type Batch struct {
	Events    []Event
	Summaries []Summary
}

// Len returns the number of logical items after merging.
func (b Batch) Len() int { return len(b.Events) + len(b.Summaries) }

// Items flattens the batch back into a single item slice, events first in
// their original order, then merged summaries in first-seen order.
func (b Batch) Items() []Item {
	out := make([]Item, 0, b.Len())
	for _, e := range b.Events {
		out = append(out, e)
	}
	for _, s := range b.Summaries {
		out = append(out, s)
	}
	return out
}

// NewBatch merges drained items into a send-ready batch.
func NewBatch(items []Item) Batch {
	var b Batch
	index := make(map[string]int)
	for _, it := range items {
		switch v := it.(type) {
		case Event:
			b.Events = append(b.Events, v)
		case Summary:
			key := mergeKey(v)
			if i, ok := index[key]; ok {
				b.Summaries[i].Count += v.Count
				continue
			}
			index[key] = len(b.Summaries)
			b.Summaries = append(b.Summaries, v)
		}
	}
	return b
}

func mergeKey(s Summary) string {
	return s.Name + "\x00" + s.ExperienceID + "\x00" + s.VariationID + "\x00" + canonicalProperties(s.Properties)
}

// canonicalProperties renders properties deterministically: keys sorted,
// values JSON-encoded. Values that fail to encode fall back to their
// fmt representation so a bad property cannot split a merge group.
func canonicalProperties(props map[string]interface{}) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		enc, err := json.Marshal(props[k])
		if err != nil {
			sb.WriteString(fmt.Sprintf("%v", props[k]))
		} else {
			sb.Write(enc)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}
