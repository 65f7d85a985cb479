package mood

import (
	"fmt"
	"regexp"
	"sync"

	qrcode "github.com/skip2/go-qrcode"
)

// playlistURLPattern matches genuine shareable catalog playlist addresses.
// Search-query URLs, empty strings, and anything off-host never match.
var playlistURLPattern = regexp.MustCompile(`^https://open\.spotify\.com/playlist/[A-Za-z0-9]+`)

const artifactSize = 256

// Issuer renders scannable codes for real playlist URLs. Rendered artifacts
// are cached per source URL for the lifetime of the Issuer.
type Issuer struct {
	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewIssuer returns an Issuer with an empty cache.
func NewIssuer() *Issuer {
	return &Issuer{cache: make(map[string]*Artifact)}
}

// Issue returns an artifact for res iff its URL is a real playlist address.
// A nil artifact (with nil error) means the result is not shareable and any
// previously displayed code must be cleared.
func (i *Issuer) Issue(res PlaylistResult) (*Artifact, error) {
	if !playlistURLPattern.MatchString(res.URL) {
		return nil, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if art, ok := i.cache[res.URL]; ok {
		return art, nil
	}

	png, err := qrcode.Encode(res.URL, qrcode.Medium, artifactSize)
	if err != nil {
		return nil, fmt.Errorf("rendering code for %s: %w", res.URL, err)
	}

	art := &Artifact{SourceURL: res.URL, PNG: png}
	i.cache[res.URL] = art
	return art, nil
}
