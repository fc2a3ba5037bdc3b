// Package connectors holds the sources the crawler reads job folders from.
// The filesystem connector walks the configured roots on the file server.
package connectors
