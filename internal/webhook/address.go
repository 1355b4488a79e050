package webhook

// Stripe sends unset address parts as "" rather than omitting them.
// SanitizeAddress returns a copy of addr where those become nil; every
// other value is kept as is.
func SanitizeAddress(addr map[string]*string) map[string]*string {
	out := make(map[string]*string, len(addr))
	for field, value := range addr {
		if value != nil && *value == "" {
			out[field] = nil
			continue
		}
		out[field] = value
	}
	return out
}
