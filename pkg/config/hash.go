package config

import (
	"fmt"
	"hash/fnv"
	"io"
	"sort"
)

// Hash computes a stable hash of the upload-relevant subtree (Global and
// Groups), so the Governor and Queue can detect "nothing relevant changed"
// and skip a reconfigure, per §5's "Options: read-mostly" note. Logging,
// Metrics, and ShutdownTimeout are deliberately excluded: changing them
// never needs to ripple into the upload core.
func (o *Options) Hash() uint64 {
	h := fnv.New64a()

	fmt.Fprintf(h, "global.slots=%d;global.speed_limit=%d;", o.Global.Upload.Slots, o.Global.Upload.SpeedLimit)
	writeGroupLimits(h, "default", o.Groups.Default.Upload)
	writeGroupLimits(h, "leechers", o.Groups.Leechers.Upload)

	names := make([]string, 0, len(o.Groups.UserDefined))
	for name := range o.Groups.UserDefined {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := o.Groups.UserDefined[name]
		writeGroupLimits(h, name, group.Upload)
		members := append([]string(nil), group.Members...)
		sort.Strings(members)
		fmt.Fprintf(h, "members=%v;", members)
	}

	return h.Sum64()
}

func writeGroupLimits(h io.Writer, name string, limits GroupUploadLimits) {
	fmt.Fprintf(h, "group=%s;slots=%d;priority=%d;strategy=%s;speed_limit=%d;", name, limits.Slots, limits.Priority, limits.Strategy, limits.SpeedLimit)
}
