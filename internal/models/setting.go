package models

import "time"

// SettingGlobalKillSwitch is the system_settings key that disables all
// runtime execution when its value is {"enabled": true}.
const SettingGlobalKillSwitch = "global_kill_switch"

// Setting is one row of the system_settings key/value table.
type Setting struct {
	Key       string    `db:"key"`
	Value     JSONB     `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
