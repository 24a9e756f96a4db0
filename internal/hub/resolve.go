package hub

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// PrimaryHost is the mirror every canonical download URL points at.
const PrimaryHost = "hf-mirror.com"

// CanonicalHost is the upstream hub domain. It is accepted on input and
// rewritten to PrimaryHost in resolved download URLs.
const CanonicalHost = "huggingface.co"

// DefaultFilename is used for opaque URLs whose path has no basename.
const DefaultFilename = "downloaded_file"

// ErrUnresolved is returned for input that matches no known URL shape.
var ErrUnresolved = errors.New("hub: unresolvable URL")

// RepoRef identifies a repository subtree: owner and name, the branch to
// read, and an optional path restricting the listing to a subdirectory.
type RepoRef struct {
	Owner   string
	Name    string
	Branch  string
	Subpath string
}

func (r RepoRef) String() string {
	s := r.Owner + "/" + r.Name
	if r.Branch != "" && r.Branch != "main" {
		s += "@" + r.Branch
	}
	return s
}

// Resolution is the outcome of classifying an input URL. Exactly one of
// the two shapes is populated: single files carry DownloadURL and
// Filename, trees carry Repo.
type Resolution struct {
	DownloadURL string
	Filename    string
	Repo        *RepoRef
}

// IsTree reports whether the resolution names a repository subtree rather
// than a single file.
func (r *Resolution) IsTree() bool {
	return r.Repo != nil
}

// Tree patterns must run before file patterns: a tree URL with a deep
// subpath could otherwise partially match a file pattern. Both hosts are
// accepted; matching is substring-based so scheme-less input works too.
var (
	treePatterns = []*regexp.Regexp{
		regexp.MustCompile(`hf-mirror\.com/([^/]+)/([^/]+)/tree/([^/]+)(?:/(.*))?`),
		regexp.MustCompile(`huggingface\.co/([^/]+)/([^/]+)/tree/([^/]+)(?:/(.*))?`),
	}
	filePatterns = []*regexp.Regexp{
		regexp.MustCompile(`hf-mirror\.com/([^/]+)/([^/]+)/resolve/([^/]+)/(.+)`),
		regexp.MustCompile(`hf-mirror\.com/([^/]+)/([^/]+)/blob/([^/]+)/(.+)`),
		regexp.MustCompile(`huggingface\.co/([^/]+)/([^/]+)/resolve/([^/]+)/(.+)`),
		regexp.MustCompile(`huggingface\.co/([^/]+)/([^/]+)/blob/([^/]+)/(.+)`),
	}
)

// Resolve classifies rawURL as a repository tree, a single hub file, or an
// opaque direct URL. Hub file URLs are canonicalized to a /resolve/
// download URL on PrimaryHost regardless of the host and view (/blob/ or
// /resolve/) they arrived with. The filename is the percent-decoded final
// path segment; opaque URLs without one fall back to DefaultFilename.
// Input matching none of these shapes returns ErrUnresolved.
func Resolve(rawURL string) (*Resolution, error) {
	trimmed, _, _ := strings.Cut(rawURL, "?")

	for _, re := range treePatterns {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		return &Resolution{
			Repo: &RepoRef{Owner: m[1], Name: m[2], Branch: m[3], Subpath: m[4]},
		}, nil
	}

	for _, re := range filePatterns {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		owner, name, branch, filePath := m[1], m[2], m[3], m[4]
		return &Resolution{
			DownloadURL: fmt.Sprintf("https://%s/%s/%s/resolve/%s/%s", PrimaryHost, owner, name, branch, filePath),
			Filename:    basename(decode(filePath)),
		}, nil
	}

	if strings.HasPrefix(trimmed, "http") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return nil, ErrUnresolved
		}
		name := basename(decode(u.Path))
		if name == "" {
			name = DefaultFilename
		}
		return &Resolution{DownloadURL: trimmed, Filename: name}, nil
	}

	return nil, ErrUnresolved
}

// ParseRepo interprets input as repository coordinates for a batch
// download: either any tree URL accepted by Resolve, or a bare
// "owner/name" pair. The branch defaults to "main".
func ParseRepo(input string) (*RepoRef, error) {
	if res, err := Resolve(input); err == nil && res.IsTree() {
		ref := *res.Repo
		if ref.Branch == "" {
			ref.Branch = "main"
		}
		return &ref, nil
	}

	if !strings.Contains(input, "://") {
		parts := strings.Split(strings.TrimSpace(input), "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return &RepoRef{Owner: parts[0], Name: parts[1], Branch: "main"}, nil
		}
	}

	return nil, ErrUnresolved
}

// decode percent-decodes s, returning it unchanged when it is not valid
// percent-encoding.
func decode(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// basename returns the segment after the final slash. Unlike path.Base it
// returns "" for empty or slash-terminated input, which callers map to a
// fallback name.
func basename(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
