// Package config loads, normalizes, and validates revoice configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads dotenv files, and honours environment
// fallbacks such as PYTHON_BIN, CHATTERBOX_DEVICE and OPENAI_API_KEY. Command
// line flags are merged on top with Apply so every stage reads one Config.
package config
