// Package config loads workqueue runtime settings from TOML or YAML files.
//
// Load starts from Default, overlays the file (format chosen by extension),
// applies the WORKQUEUE_INSTRUMENTATION environment override, normalizes
// and validates the result. The instrumentation flag is read once here and
// handed to the transition registry; nothing rereads it afterwards.
package config
