package signature

import (
	"strconv"
	"strings"
)

// Canonical holds the six fields covered by a signature.
type Canonical struct {
	Timestamp int64
	Nonce     string
	Method    string
	Path      string
	BodyHash  string
	KeyID     string
}

// String joins the fields with newlines in signing order. The method is
// upper-cased; nothing else is normalised or validated.
func (c Canonical) String() string {
	return strings.Join([]string{
		strconv.FormatInt(c.Timestamp, 10),
		c.Nonce,
		strings.ToUpper(c.Method),
		c.Path,
		c.BodyHash,
		c.KeyID,
	}, "\n")
}
