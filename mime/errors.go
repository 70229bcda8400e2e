package mime

import "errors"

var (
	// ErrTrieFrozen is returned by Add once the trie has been frozen.
	ErrTrieFrozen = errors.New("trie is frozen")

	// ErrTrieRequired is returned when a classifier is created without a trie.
	ErrTrieRequired = errors.New("signature trie required")

	// ErrInvalidDataURI is returned when a string is not a base64 data URI.
	ErrInvalidDataURI = errors.New("invalid data uri")
)
