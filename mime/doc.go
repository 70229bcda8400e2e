// Package mime classifies binary payloads by their leading bytes.
//
// A Trie maps byte signatures to MIME labels and resolves lookups by longest
// match, so a specific signature always wins over a shorter generic one that
// shares its prefix. The trie is built once at startup (see NewDefaultTrie),
// frozen, and then shared read-only by any number of goroutines.
//
// The Classifier wraps a trie as the first pipeline stage: it turns raw bytes
// into a data URI ("data:image/png;base64,...") or a core.Document.
package mime
