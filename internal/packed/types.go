package packed

// HeaderSize is the number of leading bytes every packed asset must carry.
const HeaderSize = 8

// Header holds the fields stored in the first 8 bytes of a packed asset.
// Bytes 0-2 and 4-6 are 24-bit little-endian size hints; byte 3 is padding.
type Header struct {
	UncompressedSize int  // declared decompressed size, unverified
	CompressedSize   int  // declared compressed size, unverified
	Flags            byte // logged only
}

// Asset is one packed input file read fully into memory.
type Asset struct {
	Path   string
	Data   []byte
	Header Header
}
