// Package domain grades sung notes, training sessions and whole training
// cycles. Everything here is a pure function of its inputs.
package domain
