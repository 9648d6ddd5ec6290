// Package config is a thread-safe, hot-reloadable key/value store backed
// by a YAML file, grounded on control.ConfigStore and
// control.RegisterReloadHook/TriggerHotReload, generalized from an
// in-memory-only map to one that loads its initial values from disk and
// can be asked to re-read them (via Reload, or a SIGHUP watcher) without
// restarting the process.
package config
