package tlsconfig

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ruteri/ethsigner/cryptoutils"
	"github.com/ruteri/ethsigner/secrets"
)

// ErrMalformedFingerprint marks an allow-list line that is not "<name> <fingerprint>".
var ErrMalformedFingerprint = errors.New("illegally formatted client fingerprint file")

// KnownClients maps a certificate fingerprint to the client name it was
// registered under.
type KnownClients map[cryptoutils.Fingerprint]string

// Allows reports whether fingerprint is registered under commonName.
func (k KnownClients) Allows(fingerprint cryptoutils.Fingerprint, commonName string) bool {
	name, ok := k[fingerprint]
	return ok && name == commonName
}

// ParseKnownClients reads one "<name> <sha256 fingerprint>" entry per line.
// Blank lines and lines starting with '#' are skipped.
func ParseKnownClients(r io.Reader) (KnownClients, error) {
	clients := KnownClients{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: expected name and fingerprint", ErrMalformedFingerprint, line)
		}
		fingerprint, err := cryptoutils.ParseFingerprint(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedFingerprint, line, err)
		}
		clients[fingerprint] = fields[0]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

// LoadKnownClients parses the allow-list file at path.
func LoadKnownClients(path string) (KnownClients, error) {
	content, err := secrets.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKnownClients(bytes.NewReader(content))
}
