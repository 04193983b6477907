// Package ahocorasick implements a multi-pattern Aho-Corasick automaton
// over raw bytes. The match package uses it to prefilter the atoms
// extracted from Pattern regex sources: scanning the automaton across a
// Sample's buffers is far cheaper than running every candidate Format's
// regex, and it only has to run once per Sample regardless of catalog
// size.
package ahocorasick
