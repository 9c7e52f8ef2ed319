package config

import "github.com/slskd/slskd/pkg/uploads"

// ToQueueConfig translates the Groups/Global subtree into the shape
// Queue.Reconfigure consumes.
func (o *Options) ToQueueConfig() uploads.QueueConfig {
	specs := []uploads.GroupSpec{
		groupSpec(uploads.GroupDefault, o.Groups.Default.Upload),
		groupSpec(uploads.GroupLeechers, o.Groups.Leechers.Upload),
	}
	for name, group := range o.Groups.UserDefined {
		specs = append(specs, groupSpec(name, group.Upload))
	}

	return uploads.QueueConfig{
		GlobalSlots: o.Global.Upload.Slots,
		Groups:      specs,
		Hash:        o.Hash(),
	}
}

func groupSpec(name string, limits GroupUploadLimits) uploads.GroupSpec {
	strategy, _ := uploads.ParseStrategy(limits.Strategy)
	return uploads.GroupSpec{
		Name:     name,
		Priority: limits.Priority,
		Slots:    limits.Slots,
		Strategy: strategy,
	}
}

// ToGovernorOptions translates the Groups subtree into the shape
// Governor.Reconfigure consumes. The global speed limit, if set, is
// applied under GroupDefault when Groups.Default.Upload.SpeedLimit is
// itself unset, so a bare Global.Upload.SpeedLimit still caps unassigned
// users.
func (o *Options) ToGovernorOptions() uploads.GovernorOptions {
	defaultLimit := o.Groups.Default.Upload.SpeedLimit
	if defaultLimit <= 0 {
		defaultLimit = o.Global.Upload.SpeedLimit
	}

	rates := []uploads.GroupRate{
		{Name: uploads.GroupDefault, SpeedLimit: defaultLimit.Int64()},
		{Name: uploads.GroupLeechers, SpeedLimit: o.Groups.Leechers.Upload.SpeedLimit.Int64()},
	}
	for name, group := range o.Groups.UserDefined {
		rates = append(rates, uploads.GroupRate{Name: name, SpeedLimit: group.Upload.SpeedLimit.Int64()})
	}

	return uploads.GovernorOptions{
		Groups: rates,
		Hash:   o.Hash(),
	}
}
