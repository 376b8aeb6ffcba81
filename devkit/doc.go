// Package devkit provides in-memory doubles for exercising the client
// without a live provider.
package devkit
