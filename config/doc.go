// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the router configuration structure
// including listener addresses, the variant directory endpoint, the fresh
// assignment policy, cookie and cache lifetimes, and probe intervals.
package config
