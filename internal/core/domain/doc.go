// Package domain contains the core value types and error taxonomy for the
// document answering pipeline. It has no dependencies outside the standard
// library so that every other layer can import it freely.
package domain
