package asyncftp

import (
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v3"
)

const (
	defaultUsername = "anonymous"
	defaultPassword = "anonymous@"
	defaultEncoding = "UTF-8"
)

// Configuration describes an FTP session: the server base URL, credentials,
// the data connection mode and the text encoding of remote file names.
//
// A Configuration is immutable once built and may be shared by any number of
// concurrent operations.
type Configuration struct {
	url          *url.URL
	username     string
	password     string
	passive      bool
	encoding     encoding.Encoding
	encodingName string
}

// ConfigOption is a functional option for NewConfiguration.
type ConfigOption func(*Configuration) error

// WithCredentials sets the login username and password. Without it the
// credentials embedded in the URL are used, or anonymous login.
func WithCredentials(username, password string) ConfigOption {
	return func(c *Configuration) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithPassive selects passive (true, the default) or active data connections.
func WithPassive(passive bool) ConfigOption {
	return func(c *Configuration) error {
		c.passive = passive
		return nil
	}
}

// WithEncoding sets the text encoding of remote file names by its IANA name,
// for example "UTF-8", "ISO-8859-1" or "macintosh".
func WithEncoding(name string) ConfigOption {
	return func(c *Configuration) error {
		enc, canonical, err := lookupEncoding(name)
		if err != nil {
			return err
		}
		c.encoding = enc
		c.encodingName = canonical
		return nil
	}
}

// NewConfiguration parses an ftp:// URL and applies the options.
//
// Example:
//
//	cfg, err := asyncftp.NewConfiguration("ftp://ftp.example.com/pub",
//	    asyncftp.WithCredentials("user", "secret"),
//	    asyncftp.WithEncoding("ISO-8859-1"),
//	)
func NewConfiguration(rawURL string, opts ...ConfigOption) (*Configuration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "asyncftp: parse url")
	}
	if !strings.EqualFold(u.Scheme, "ftp") {
		return nil, errors.Errorf("asyncftp: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Errorf("asyncftp: missing host in %q", rawURL)
	}

	c := &Configuration{
		passive:      true,
		encoding:     unicode.UTF8,
		encodingName: defaultEncoding,
	}
	if u.User != nil {
		c.username = u.User.Username()
		c.password, _ = u.User.Password()
	}

	base := *u
	base.User = nil
	base.RawQuery = ""
	base.Fragment = ""
	if base.Path == "" {
		base.Path = "/"
		base.RawPath = ""
	}
	c.url = &base

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.username == "" {
		c.username = defaultUsername
		if c.password == "" {
			c.password = defaultPassword
		}
	}
	return c, nil
}

// URL returns a copy of the base URL, without credentials.
func (c *Configuration) URL() *url.URL {
	u := *c.url
	return &u
}

func (c *Configuration) Username() string { return c.username }
func (c *Configuration) Password() string { return c.password }
func (c *Configuration) Passive() bool    { return c.passive }

// Encoding returns the text encoding of remote file names.
func (c *Configuration) Encoding() encoding.Encoding { return c.encoding }

// EncodingName returns the IANA name of Encoding.
func (c *Configuration) EncodingName() string { return c.encodingName }

// Resolve returns the base URL joined with path. A trailing slash on path is
// kept, so a directory path resolves to a listing URL.
func (c *Configuration) Resolve(path string) *url.URL {
	if path == "" {
		return c.URL()
	}
	return c.url.JoinPath(path)
}

func (c *Configuration) streamOptions() StreamOptions {
	return StreamOptions{
		Passive:           c.passive,
		Username:          c.username,
		Password:          c.password,
		CloseNativeSocket: true,
		FetchResourceInfo: true,
	}
}

func lookupEncoding(name string) (encoding.Encoding, string, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, "", errors.Wrapf(err, "asyncftp: unknown encoding %q", name)
	}
	if enc == nil {
		return nil, "", errors.Errorf("asyncftp: unsupported encoding %q", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	return enc, canonical, nil
}

// fileConfiguration is the YAML form of a Configuration.
type fileConfiguration struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Passive  *bool  `yaml:"passive"`
	Encoding string `yaml:"encoding"`
}

// ParseConfiguration builds a Configuration from YAML:
//
//	url: ftp://ftp.example.com/pub
//	username: user
//	password: secret
//	passive: true
//	encoding: ISO-8859-1
//
// The options are applied after the file's settings.
func ParseConfiguration(data []byte, opts ...ConfigOption) (*Configuration, error) {
	var fc fileConfiguration
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "asyncftp: parse configuration")
	}
	if fc.URL == "" {
		return nil, errors.New("asyncftp: configuration has no url")
	}

	var fileOpts []ConfigOption
	if fc.Username != "" {
		fileOpts = append(fileOpts, WithCredentials(fc.Username, fc.Password))
	}
	if fc.Passive != nil {
		fileOpts = append(fileOpts, WithPassive(*fc.Passive))
	}
	if fc.Encoding != "" {
		fileOpts = append(fileOpts, WithEncoding(fc.Encoding))
	}
	return NewConfiguration(fc.URL, append(fileOpts, opts...)...)
}

// LoadConfiguration reads a YAML configuration file; see ParseConfiguration.
func LoadConfiguration(path string, opts ...ConfigOption) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "asyncftp: read configuration")
	}
	return ParseConfiguration(data, opts...)
}
