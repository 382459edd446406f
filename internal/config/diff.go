package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ReconcileChanged is true when reconcile tuning (temperature or max
	// items) changed. These apply to the next reconciliation without restart.
	ReconcileChanged bool
	NewReconcile     ReconcileConfig

	// RecipeChanged is true when recipe extraction tuning changed.
	RecipeChanged bool
	NewRecipe     RecipeConfig

	// CaptureChanged is true when capture session defaults changed. Applies
	// to new capture sessions only; live sessions keep their settings.
	CaptureChanged bool
	NewCapture     CaptureConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: storage and
// provider changes require a restart and are deliberately ignored here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Reconcile != new.Reconcile {
		d.ReconcileChanged = true
		d.NewReconcile = new.Reconcile
	}

	if old.Recipe != new.Recipe {
		d.RecipeChanged = true
		d.NewRecipe = new.Recipe
	}

	if old.Capture != new.Capture {
		d.CaptureChanged = true
		d.NewCapture = new.Capture
	}

	return d
}
