package uid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"
)

// ObjectIDLength is the length of a generated id in hex characters.
const ObjectIDLength = 24

// ErrNoNodeIdentity is returned when neither /etc/machine-id nor the hostname
// can be read.
var ErrNoNodeIdentity = errors.New("uid: cannot determine node identity")

// ObjectIDGenerator issues 12-byte ids, hex encoded: 4 bytes of unix seconds,
// 5 bytes identifying the node and process, and a 3-byte counter. Ids from one
// generator sort by creation second.
type ObjectIDGenerator struct {
	node    [5]byte
	counter atomic.Uint32
	now     func() time.Time
}

// NewObjectIDGenerator derives the node bytes from the machine identity and
// the pid, and seeds the counter randomly.
func NewObjectIDGenerator() (*ObjectIDGenerator, error) {
	identity, err := nodeIdentity()
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(identity + "/" + strconv.Itoa(os.Getpid())))

	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}

	g := &ObjectIDGenerator{now: time.Now}
	copy(g.node[:], sum[:5])
	g.counter.Store(binary.BigEndian.Uint32(seed[:]))

	return g, nil
}

func nodeIdentity() (string, error) {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	}
	if h, err := os.Hostname(); err == nil {
		if h = strings.TrimSpace(h); h != "" {
			return h, nil
		}
	}
	return "", ErrNoNodeIdentity
}

func (g *ObjectIDGenerator) Generate() string {
	var raw [12]byte

	binary.BigEndian.PutUint32(raw[0:4], uint32(g.now().Unix()))
	copy(raw[4:9], g.node[:])

	c := g.counter.Inc()
	raw[9] = byte(c >> 16)
	raw[10] = byte(c >> 8)
	raw[11] = byte(c)

	return hex.EncodeToString(raw[:])
}
