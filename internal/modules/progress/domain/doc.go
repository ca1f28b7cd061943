// Package domain holds the training-cycle state, its health rules and its
// persisted JSON schema.
package domain
