// Package tui renders conversations for terminal output.
package tui
