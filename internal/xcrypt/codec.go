package xcrypt

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MaxPlainSize is the largest plaintext object this codec will frame. It
// matches the upstream 128 MiB - 1 ceiling; above it a push or fetch fails
// loudly instead of producing a frame whose length field silently wraps.
const MaxPlainSize = 128*1024*1024 - 1

// frameMinSize is the smallest legal frame: 16-byte id head, a one-byte
// length-of-length plus at least one length byte, an empty compressed
// payload, and the 16-byte id tail.
const frameMinSize = 16 + 2 + 16

var (
	zstdEncPool sync.Pool
	zstdDecPool sync.Pool

	encoderLevel = zstd.SpeedDefault
)

// SetCompressionLevel sets the zstd level newly built encoders use,
// translating the 1-22 zstd numbering xconfig.Defaults.CompressionLevel
// carries into the package's EncoderLevel enum. It must run before the
// first encodeFrame call; encoders already sitting in the pool keep
// whatever level they were built with.
func SetCompressionLevel(level int) {
	encoderLevel = zstd.EncoderLevelFromZstd(level)
}

func getEncoder() *zstd.Encoder {
	if e, ok := zstdEncPool.Get().(*zstd.Encoder); ok {
		return e
	}
	e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		// Only fails on invalid options; our options are fixed and valid.
		panic(err)
	}
	return e
}

func putEncoder(e *zstd.Encoder) { zstdEncPool.Put(e) }

func getDecoder() *zstd.Decoder {
	if d, ok := zstdDecPool.Get().(*zstd.Decoder); ok {
		return d
	}
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	return d
}

func putDecoder(d *zstd.Decoder) { zstdDecPool.Put(d) }

// encodeFrame builds the compression-layer frame: the id's first 16
// bytes, a length-of-length byte plus a little-endian length field, the
// compressed payload, then a 16-byte tail holding the id's bytes 16..20
// followed by 12 zero bytes.
func encodeFrame(id ObjectId, plain []byte) ([]byte, error) {
	if len(plain) > MaxPlainSize {
		return nil, fmt.Errorf("%w: object is %d bytes, max is %d", ErrInputTooLarge, len(plain), MaxPlainSize)
	}

	enc := getEncoder()
	defer putEncoder(enc)
	compressed := enc.EncodeAll(plain, nil)

	sz := uint64(len(plain))
	var lenBytes [8]byte
	n := 0
	for {
		lenBytes[n] = byte(sz)
		sz >>= 8
		n++
		if sz == 0 {
			break
		}
	}

	out := make([]byte, 0, 16+1+n+len(compressed)+16)
	out = append(out, id[:16]...)
	out = append(out, byte(n-1))
	out = append(out, lenBytes[:n]...)
	out = append(out, compressed...)
	out = append(out, id[16:20]...)
	out = append(out, make([]byte, 12)...)
	return out, nil
}

// decodeFrame inverts encodeFrame, recovering the id from the bookends and
// checking the tail's zero padding and the declared plaintext size. It
// does not compare the recovered id with anything; that is left to the
// caller (decryptAndStore checks it against the stored plaintext's hash).
func decodeFrame(frame []byte) (id ObjectId, plain []byte, err error) {
	if len(frame) < frameMinSize {
		return id, nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrCorruption, len(frame))
	}

	copy(id[:16], frame[:16])
	ptr := frame[16:]

	lenOfLen := int(ptr[0]) + 1
	if lenOfLen > 8 || len(ptr) < 1+lenOfLen {
		return id, nil, fmt.Errorf("%w: invalid frame length field", ErrCorruption)
	}
	var plainSize uint64
	for i := 0; i < lenOfLen; i++ {
		plainSize |= uint64(ptr[1+i]) << (8 * i)
	}
	if plainSize > MaxPlainSize {
		return id, nil, fmt.Errorf("%w: declared plaintext size %d exceeds maximum", ErrCorruption, plainSize)
	}
	ptr = ptr[1+lenOfLen:]

	if len(ptr) < 16 {
		return id, nil, fmt.Errorf("%w: frame missing id tail", ErrCorruption)
	}
	compressed := ptr[:len(ptr)-16]
	tail := ptr[len(ptr)-16:]
	for _, b := range tail[4:] {
		if b != 0 {
			return id, nil, fmt.Errorf("%w: frame trailer zero-padding is nonzero", ErrCorruption)
		}
	}
	copy(id[16:20], tail[:4])

	dec := getDecoder()
	defer putDecoder(dec)
	plain, err = dec.DecodeAll(compressed, make([]byte, 0, plainSize))
	if err != nil {
		return id, nil, fmt.Errorf("%w: decompression failed: %v", ErrCorruption, err)
	}
	if uint64(len(plain)) != plainSize {
		return id, nil, fmt.Errorf("%w: decompressed size %d, frame declared %d", ErrCorruption, len(plain), plainSize)
	}

	return id, plain, nil
}

// EncodeObject produces the ciphertext bytes for a single plaintext
// object: frame, then seal with the password-derived AES construction.
func EncodeObject(pw Password, id ObjectId, plain []byte) ([]byte, error) {
	frame, err := encodeFrame(id, plain)
	if err != nil {
		return nil, err
	}
	return sealBuffer(pw, frame)
}

// DecodeObject inverts EncodeObject: open the AES layer, then the frame,
// recovering the original id and plaintext bytes.
func DecodeObject(pw Password, ciphertext []byte) (ObjectId, []byte, error) {
	frame, err := openBuffer(pw, ciphertext)
	if err != nil {
		return ObjectId{}, nil, err
	}
	return decodeFrame(frame)
}
