// Package history materializes an oldest-first snapshot sequence as a linear
// chain of git commits.
//
// The repository is built with go-git in a staging directory next to the
// destination and renamed into place only once every commit exists. A run
// therefore leaves either a complete history or nothing at all. An existing
// repository at the destination is refused before anything is written.
//
// Repository layout:
//
//	README.md       overview written once, part of the root commit
//	mainboard.tsv   mainboard, rewritten whenever it changed
//	maybeboard.tsv  maybeboard, rewritten whenever it changed
package history
