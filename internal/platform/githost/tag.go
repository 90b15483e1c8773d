package githost

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NextReleaseTag names a release after the date ("v2026-10-19"). When a
// release with that name exists, a numeric suffix is incremented
// ("v2026-10-19.2", "v2026-10-19.3", ...).
func NextReleaseTag(now time.Time, existing []Release) string {
	base := "v" + now.Format("2006-01-02")
	taken := false
	highest := 1
	for _, r := range existing {
		for _, name := range []string{r.TagName, r.Name} {
			if name == base {
				taken = true
				continue
			}
			rest, ok := strings.CutPrefix(name, base+".")
			if !ok {
				continue
			}
			if n, err := strconv.Atoi(rest); err == nil {
				taken = true
				if n > highest {
					highest = n
				}
			}
		}
	}
	if !taken {
		return base
	}
	return fmt.Sprintf("%s.%d", base, highest+1)
}
