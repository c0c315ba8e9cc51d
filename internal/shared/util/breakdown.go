package util

// Breakdown counts items by the key returned from keyOf. Keys listed in seed
// are always present, with zero when no item maps to them.
func Breakdown[T any](items []T, keyOf func(T) string, seed ...string) map[string]int {
	out := make(map[string]int, len(seed))
	for _, k := range seed {
		out[k] = 0
	}
	for _, item := range items {
		k := keyOf(item)
		if k == "" {
			k = "unknown"
		}
		out[k]++
	}
	return out
}

// SumBy adds up the value returned from valueOf for every item.
func SumBy[T any](items []T, valueOf func(T) int64) int64 {
	var total int64
	for _, item := range items {
		total += valueOf(item)
	}
	return total
}

// Unique returns the distinct keys in first-seen order.
func Unique[T any](items []T, keyOf func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		k := keyOf(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
