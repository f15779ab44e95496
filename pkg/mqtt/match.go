package mqtt

import "strings"

// Match reports whether topic matches the subscription filter. The filter may use the + and #
// wildcards and may be a shared subscription ($share/<group>/<filter>).
func Match(filter, topic string) bool {
	return topicsMatch(topicFilter(filter), topic)
}

func topicsMatch(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if !strings.ContainsAny(filter, "+#") {
		return false
	}

	fp, tp := strings.Split(filter, "/"), strings.Split(topic, "/")
	for i, part := range fp {
		switch {
		case part == "#":
			return true
		case i >= len(tp):
			return false
		case part != "+" && part != tp[i]:
			return false
		}
	}
	return len(fp) == len(tp)
}

func topicFilter(filter string) string {
	if rest, ok := strings.CutPrefix(filter, "$share/"); ok {
		if _, f, ok := strings.Cut(rest, "/"); ok {
			return f
		}
	}
	return filter
}
