// Package pipeline turns endpoint calls into signed HTTP requests and
// classifies provider responses into parsed payloads or typed errors.
package pipeline
