package overrides

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/tabula/errors"
)

// Context carries the document and session attributes rules are
// evaluated against. Build with NewContext and the With* methods.
type Context struct {
	DocumentType   string            `json:"document_type,omitempty"`
	Organization   string            `json:"organization,omitempty"`
	User           string            `json:"user,omitempty"`
	Session        string            `json:"session,omitempty"`
	Project        string            `json:"project,omitempty"`
	Worksheet      string            `json:"worksheet,omitempty"`
	HeaderPosition int               `json:"header_position"`
	TotalColumns   int               `json:"total_columns"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewContext returns an empty evaluation context.
func NewContext() *Context {
	return &Context{}
}

func (c *Context) WithDocumentType(documentType string) *Context {
	c.DocumentType = documentType
	return c
}

func (c *Context) WithOrganization(organization string) *Context {
	c.Organization = organization
	return c
}

func (c *Context) WithUser(user string) *Context {
	c.User = user
	return c
}

func (c *Context) WithSession(session string) *Context {
	c.Session = session
	return c
}

func (c *Context) WithProject(project string) *Context {
	c.Project = project
	return c
}

func (c *Context) WithWorksheet(worksheet string) *Context {
	c.Worksheet = worksheet
	return c
}

func (c *Context) WithPosition(headerPosition, totalColumns int) *Context {
	c.HeaderPosition = headerPosition
	c.TotalColumns = totalColumns
	return c
}

func (c *Context) WithMetadata(key, value string) *Context {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
	return c
}

// Validate checks internal consistency of the context.
func (c *Context) Validate() error {
	if c.HeaderPosition < 0 {
		return errors.Newf("header position %d is negative", c.HeaderPosition)
	}
	if c.TotalColumns < 0 {
		return errors.Newf("total columns %d is negative", c.TotalColumns)
	}
	if c.TotalColumns > 0 && c.HeaderPosition >= c.TotalColumns {
		return errors.Newf("header position %d outside column count %d",
			c.HeaderPosition, c.TotalColumns)
	}
	return nil
}

// CacheKey returns a stable string identifying this context for
// memoizing rule decisions. Metadata keys are sorted so equal contexts
// produce equal keys.
func (c *Context) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dt=%s|org=%s|user=%s|sess=%s|proj=%s|ws=%s|pos=%d|cols=%d",
		c.DocumentType, c.Organization, c.User, c.Session, c.Project,
		c.Worksheet, c.HeaderPosition, c.TotalColumns)
	if len(c.Metadata) > 0 {
		keys := make([]string, 0, len(c.Metadata))
		for k := range c.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|md.%s=%s", k, c.Metadata[k])
		}
	}
	return b.String()
}

// scopeValue returns the context attribute matching a rule scope, or
// "" when the scope has no context counterpart.
func (c *Context) scopeValue(scope Scope) string {
	switch scope {
	case ScopeDocumentType:
		return c.DocumentType
	case ScopeOrganization:
		return c.Organization
	case ScopeUser:
		return c.User
	case ScopeSession:
		return c.Session
	case ScopeProject:
		return c.Project
	default:
		return ""
	}
}
