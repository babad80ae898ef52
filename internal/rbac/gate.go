package rbac

// Authorize reports whether granted holds every required permission.
// An empty requirement is always satisfied.
func Authorize(granted PermissionSet, required ...string) bool {
	return len(Missing(granted, required...)) == 0
}

// Missing lists the required permissions absent from granted, in input order.
func Missing(granted PermissionSet, required ...string) []string {
	var missing []string
	for _, r := range required {
		n := normalize(r)
		if n == "" {
			continue
		}
		if _, ok := granted[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}
