// Package labels loads the optional group label map used by discovery.
//
// The label file is JSON keyed by group address ("network/app/group"):
//
//	{
//	  "labels":        { "254/56/4": "Kitchen Downlights" },
//	  "typeOverrides": { "254/56/4": "switch" },
//	  "entityIds":     { "254/56/4": "kitchen_downlights" },
//	  "exclude":       [ "254/56/99" ]
//	}
//
// Labels replace the TagNames reported by the C-Bus project tree,
// typeOverrides force a Home Assistant component, entityIds pin the
// object ID used in discovery topics, and excluded groups are never
// announced.
//
// When watching is enabled the file is reloaded on change via fsnotify,
// so label edits take effect without restarting the bridge.
package labels
