package config

import "fmt"

// A migration rewrites the raw config map from one schema version to the
// next. Migrations run in order until the map reaches CurrentVersion.
type migration struct {
	from  string
	to    string
	apply func(raw map[string]interface{})
}

var migrations = []migration{
	{
		// 1.0 shipped before per-user timezones existed.
		from: "1.0", to: "1.1",
		apply: func(raw map[string]interface{}) {
			raw["timezones"] = map[string]interface{}{}
		},
	},
	{
		// 1.1 -> 1.2 introduced the plugin data namespace and moved
		// scheduler state out of top-level keys.
		from: "1.1", to: "1.2",
		apply: func(raw map[string]interface{}) {
			raw["plugin_data"] = map[string]interface{}{}
			delete(raw, "scheduled_events")
		},
	},
	{
		// 1.2 -> 1.3 added the Slack and Telegram transports and the
		// ops event-stream listener.
		from: "1.2", to: "1.3",
		apply: func(raw map[string]interface{}) {
			raw["slack_app_token"] = ""
			raw["slack_bot_token"] = ""
			raw["telegram_bot_api_token"] = ""
			raw["ops_listen_addr"] = ""
		},
	},
}

// migrate walks the raw map through every applicable migration step.
// It returns the version the file started at when any step ran.
func migrate(raw map[string]interface{}) (string, error) {
	version, _ := raw["version"].(string)
	if version == "" {
		// Files predating versioning are treated as 1.0.
		version = "1.0"
	}
	if version == CurrentVersion {
		return "", nil
	}

	start := version
	for version != CurrentVersion {
		stepped := false
		for _, m := range migrations {
			if m.from == version {
				m.apply(raw)
				version = m.to
				stepped = true
				break
			}
		}
		if !stepped {
			return "", fmt.Errorf("no migration path from config version %q", version)
		}
	}

	raw["version"] = CurrentVersion
	return start, nil
}
