package crypto

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // offered as a legacy strategy
	"golang.org/x/crypto/sha3"
)

// HashStrategy names a hash primitive used for lanes and key derivation.
// Strategies range from fast and weak (md5) to slow and memory hard (argon2id).
type HashStrategy string

const (
	HashMD5        HashStrategy = "md5"
	HashSHA1       HashStrategy = "sha1"
	HashRIPEMD160  HashStrategy = "ripemd160"
	HashSHA256     HashStrategy = "sha256"
	HashSHA384     HashStrategy = "sha384"
	HashSHA512     HashStrategy = "sha512"
	HashSHA3_256   HashStrategy = "sha3-256"
	HashSHA3_512   HashStrategy = "sha3-512"
	HashBlake2b256 HashStrategy = "blake2b-256"
	HashBlake2b512 HashStrategy = "blake2b-512"
	HashArgon2id   HashStrategy = "argon2id"
)

// argon2id parameters for the slow strategy
const (
	argonTime    = 1
	argonMemKB   = 16 * 1024
	argonThreads = 2
	argonOutLen  = 32
)

var argonSumSalt = []byte("walletlock/argon2id-lane")

var hashConstructors = map[HashStrategy]func() hash.Hash{
	HashMD5:        md5.New,
	HashSHA1:       sha1.New,
	HashRIPEMD160:  ripemd160.New,
	HashSHA256:     sha256.New,
	HashSHA384:     sha512.New384,
	HashSHA512:     sha512.New,
	HashSHA3_256:   sha3.New256,
	HashSHA3_512:   sha3.New512,
	HashBlake2b256: newBlake2b256,
	HashBlake2b512: newBlake2b512,
}

func newBlake2b256() hash.Hash {
	h, _ := blake2b.New256(nil) // only fails for keys > 64 bytes
	return h
}

func newBlake2b512() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

// ParseHashStrategy resolves a configured strategy name.
func ParseHashStrategy(name string) (HashStrategy, error) {
	s := HashStrategy(strings.ToLower(strings.TrimSpace(name)))
	if s == HashArgon2id {
		return s, nil
	}
	if _, ok := hashConstructors[s]; !ok {
		return "", fmt.Errorf("unknown hash strategy %q", name)
	}
	return s, nil
}

// Strategies lists every supported strategy, fastest first.
func Strategies() []HashStrategy {
	return []HashStrategy{
		HashMD5, HashSHA1, HashRIPEMD160, HashSHA256, HashSHA384, HashSHA512,
		HashSHA3_256, HashSHA3_512, HashBlake2b256, HashBlake2b512, HashArgon2id,
	}
}

// New returns a hash.Hash constructor. Memory-hard strategies have none.
func (s HashStrategy) New() (func() hash.Hash, bool) {
	fn, ok := hashConstructors[s]
	return fn, ok
}

// Sum hashes data with the strategy.
func (s HashStrategy) Sum(data []byte) ([]byte, error) {
	if s == HashArgon2id {
		return argon2.IDKey(data, argonSumSalt, argonTime, argonMemKB, argonThreads, argonOutLen), nil
	}
	fn, ok := hashConstructors[s]
	if !ok {
		return nil, fmt.Errorf("unknown hash strategy %q", string(s))
	}
	h := fn()
	h.Write(data)
	return h.Sum(nil), nil
}

func (s HashStrategy) String() string {
	return string(s)
}
