package io

// Serializable defines the binary encoding/decoding interface. Errors are
// carried by the reader/writer, not returned.
type Serializable interface {
	DecodeBinary(*BinReader)
	EncodeBinary(*BinWriter)
}
