// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports). The pipeline depends only on these
// interfaces; concrete clients live under internal/adapters/driven.
package driven
