// Package ctxengine assembles the text a chat model receives ahead of the
// user's turn: the brand context block, the recent conversation slice and
// the system prompt that wraps them.
package ctxengine

// Config holds the tuning knobs for context assembly.
type Config struct {
	// HistoryLimit is the default number of conversation turns returned
	// by BuildConversationContext when the caller passes a non-positive
	// limit.
	HistoryLimit int `yaml:"history_limit"`

	// MaxActiveTasks caps the task lines listed in the brand block. The
	// section header still counts every active task.
	MaxActiveTasks int `yaml:"max_active_tasks"`

	// RecentActivities is the number of activity log entries shown.
	RecentActivities int `yaml:"recent_activities"`
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// sensible defaults.
func (cfg Config) withDefaults() Config {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.MaxActiveTasks <= 0 {
		cfg.MaxActiveTasks = 10
	}
	if cfg.RecentActivities <= 0 {
		cfg.RecentActivities = 10
	}
	return cfg
}
