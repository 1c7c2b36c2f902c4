// Package resolver turns raw input lines into download endpoints of the file host.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"pillowdl/internal/errs"
	"pillowdl/pkg/urls"
)

// IdentifierLen is the length of a file identifier.
const IdentifierLen = 32

// identifierPattern matches a file identifier of lowercase hex characters.
var identifierPattern = fmt.Sprintf(`[a-f0-9]{%d}`, IdentifierLen)

var reIdentifier = regexp.MustCompile(identifierPattern)

// Resolver resolves input lines against one file host.
type Resolver struct {
	segment string // host-specific path segment, e.g. pillowcase.su/f/
	reLink  *regexp.Regexp
	apiBase string
}

// New creates a resolver for links on host whose files are served under apiBase.
func New(host, apiBase string) *Resolver {
	return &Resolver{
		segment: host + "/f/",
		reLink:  regexp.MustCompile(`https://` + regexp.QuoteMeta(host) + `/f/` + identifierPattern),
		apiBase: apiBase,
	}
}

// Resolve returns the canonical source link held by line.
// A line that already contains the host path segment is returned unchanged.
func (r *Resolver) Resolve(line string) (string, error) {
	if strings.Contains(line, r.segment) {
		return line, nil
	}

	return r.embeddedLink(line)
}

// embeddedLink extracts the first https link to host from line.
// Any such link contains the path segment, so Resolve only calls it for lines
// the segment check already rejected and it reports ErrNoSourceLink there.
func (r *Resolver) embeddedLink(line string) (string, error) {
	if link := r.reLink.FindString(line); link != "" {
		return link, nil
	}

	return "", errs.ErrNoSourceLink
}

// Identifier extracts the file identifier from a canonical source link.
func Identifier(link string) (string, error) {
	id := reIdentifier.FindString(link)
	if id == "" {
		return "", errs.ErrNoFileID
	}

	return id, nil
}

// Endpoint builds the download endpoint for a file identifier.
func (r *Resolver) Endpoint(id string) string {
	return urls.Join(r.apiBase, id)
}
