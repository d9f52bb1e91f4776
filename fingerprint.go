package unwind

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a stable identifier for the stack the records
// describe. Two reports with the same frames, statements and flags share a
// fingerprint regardless of the runtime values involved, so repeated
// crashes at the same site group together.
func Fingerprint(records []Record) string {
	hash, err := blake2b.New256(nil)
	if err != nil {
		// Only fails for oversized keys.
		panic("unwind: blake2b.New256: " + err.Error())
	}
	for _, r := range records {
		hash.Write([]byte(r.Context.File))
		hash.Write([]byte{0})
		hash.Write([]byte(strconv.Itoa(r.Context.Line)))
		hash.Write([]byte{0})
		hash.Write([]byte(r.Context.Function))
		hash.Write([]byte{0})
		hash.Write([]byte(r.Context.Statement))
		hash.Write([]byte{0})
		hash.Write([]byte(r.Flag))
		if r.Exception != nil {
			hash.Write([]byte{0})
			hash.Write([]byte(r.Exception.Type.Name))
		}
		hash.Write([]byte{'\n'})
	}
	digest := hash.Sum(nil)
	return hex.EncodeToString(digest[:12])
}
