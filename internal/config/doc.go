// Package config loads server configuration with viper.
//
// Every key is read from a VCPKG_MCP_ prefixed environment variable, for
// example VCPKG_MCP_LOG_LEVEL. VCPKG_MCP_CONFIG may point at a .env style
// file holding the same keys without the prefix; environment variables win
// over the file. The GitHub token is also read from plain GITHUB_TOKEN.
//
// Setting DB_PATH to "off" disables the snapshot store.
package config
