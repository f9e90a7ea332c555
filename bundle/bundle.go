// Package bundle implements a JSON document format describing a set of
// recipe items, translated into Builder calls: Load parses the document,
// Apply emits the equivalent Builder registrations. Load only parses; the
// only effect of Apply is those Builder registrations.
package bundle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/itnpc/httpmock"
	"github.com/itnpc/httpmock/builder"
)

// ContentFormat selects how an item's content fields are interpreted.
type ContentFormat string

const (
	FormatString ContentFormat = "string"
	FormatJSON   ContentFormat = "json"
	FormatBase64 ContentFormat = "base64"
)

// StringSet is a header value list that unmarshals from either a single
// JSON string or a JSON array of strings.
type StringSet []string

// UnmarshalJSON accepts either form.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringSet{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringSet(many)
	return nil
}

// HeaderSet is the header-map shape shared by requestHeaders,
// responseHeaders and contentHeaders.
type HeaderSet map[string]StringSet

// Status is an item's response status, accepted as either a JSON number or
// a standard status name.
type Status int

// UnmarshalJSON accepts either form.
func (s *Status) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Status(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	code, ok := statusByName(name)
	if !ok {
		return fmt.Errorf("bundle: unknown status name %q", name)
	}
	*s = Status(code)
	return nil
}

// statusByName looks up a standard status name case- and
// space/underscore-insensitively against net/http's own StatusText table
// (e.g. "NotFound", "not found" and "Not Found" all resolve to 404).
func statusByName(name string) (int, bool) {
	norm := normalizeStatusName(name)
	for code := 100; code < 600; code++ {
		text := http.StatusText(code)
		if text == "" {
			continue
		}
		if normalizeStatusName(text) == norm {
			return code, true
		}
	}
	return 0, false
}

func normalizeStatusName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// Item is one registration in a bundle document.
type Item struct {
	ID      string `json:"id"`
	Comment string `json:"comment"`

	Method  string `json:"method"`
	URI     string `json:"uri"`
	Version string `json:"version"`
	Status  Status `json:"status"`

	RequestHeaders  HeaderSet `json:"requestHeaders"`
	ResponseHeaders HeaderSet `json:"responseHeaders"`
	ContentHeaders  HeaderSet `json:"contentHeaders"`

	ContentFormat ContentFormat   `json:"contentFormat"`
	ContentString string          `json:"contentString"`
	ContentJSON   json.RawMessage `json:"contentJson"`
	ContentBase64 string          `json:"contentBase64"`

	IgnoreHost  bool `json:"ignoreHost"`
	IgnorePath  bool `json:"ignorePath"`
	IgnoreQuery bool `json:"ignoreQuery"`

	Priority *int `json:"priority"`
	Skip     bool `json:"skip"`
}

// Document is the bundle file's root object.
type Document struct {
	ID      string `json:"id"`
	Comment string `json:"comment"`
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// Load parses a bundle JSON document and returns its items. It performs no
// registration; that is Apply's job.
func Load(data []byte) ([]Item, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	return doc.Items, nil
}

// Apply emits one Builder registration per item into reg, in document
// order, skipping items with Skip set.
func Apply(reg builder.Registerer, items []Item) error {
	for i, item := range items {
		if item.Skip {
			continue
		}
		if err := applyItem(reg, item); err != nil {
			return fmt.Errorf("bundle: item %d (%s): %w", i, item.ID, err)
		}
	}
	return nil
}

func applyItem(reg builder.Registerer, item Item) error {
	b := builder.New()

	method := item.Method
	if method == "" {
		method = http.MethodGet
	}
	b.Method(method)

	u, err := url.Parse(item.URI)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", item.URI, err)
	}
	b.Scheme(u.Scheme)
	if item.IgnoreHost {
		b.AnyHost()
	} else {
		b.Host(u.Hostname())
		if port := u.Port(); port != "" {
			b.Port(port)
		}
	}
	if item.IgnorePath {
		b.AnyPath()
	} else {
		b.Path(u.Path)
	}
	if item.IgnoreQuery {
		b.AnyQuery()
	} else {
		b.Query(u.RawQuery)
	}

	for name, values := range item.RequestHeaders {
		b.HeaderEquals(name, values...)
	}

	if item.Priority != nil {
		b.Priority(*item.Priority)
	}

	if major, minor, ok := parseVersion(item.Version); ok {
		b.Version(major, minor)
	}

	status := int(item.Status)
	if status == 0 {
		status = http.StatusOK
	}
	b.Status(status)

	for name, values := range item.ResponseHeaders {
		for _, v := range values {
			b.ResponseHeader(name, v)
		}
	}
	for name, values := range item.ContentHeaders {
		for _, v := range values {
			b.ContentHeader(name, v)
		}
	}

	body, err := contentBytes(item)
	if err != nil {
		return err
	}
	b.Body(body)

	_, err = b.RegisterWith(reg)
	return err
}

func contentBytes(item Item) ([]byte, error) {
	switch item.ContentFormat {
	case "", FormatString:
		return []byte(item.ContentString), nil
	case FormatJSON:
		if len(item.ContentJSON) == 0 {
			return nil, nil
		}
		return canonicalJSON(item.ContentJSON)
	case FormatBase64:
		return base64.StdEncoding.DecodeString(item.ContentBase64)
	default:
		return nil, &httpmock.BuilderError{Reason: "unknown contentFormat: " + string(item.ContentFormat)}
	}
}

func parseVersion(v string) (major, minor int, ok bool) {
	if v == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(v, ".", 2)
	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return maj, 0, true
	}
	minorVal, err := strconv.Atoi(parts[1])
	if err != nil {
		return maj, 0, true
	}
	return maj, minorVal, true
}

// canonicalJSON re-serializes raw JSON with object keys sorted, so the
// same logical document always produces identical bytes regardless of
// the key order the bundle author wrote (used to make contentJson output
// deterministic for byte-equality test assertions). Built with
// tidwall/gjson to walk the parsed tree and tidwall/sjson to rebuild it,
// rather than round-tripping through encoding/json's generic
// map[string]any (which would lose numeric formatting fidelity).
func canonicalJSON(raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid contentJson")
	}
	return canonicalizeValue(gjson.ParseBytes(raw))
}

func canonicalizeValue(v gjson.Result) ([]byte, error) {
	switch {
	case v.IsObject():
		keys := make([]string, 0)
		fields := map[string]gjson.Result{}
		v.ForEach(func(key, value gjson.Result) bool {
			keys = append(keys, key.String())
			fields[key.String()] = value
			return true
		})
		sort.Strings(keys)
		out := []byte("{}")
		var err error
		for _, k := range keys {
			childBytes, cerr := canonicalizeValue(fields[k])
			if cerr != nil {
				return nil, cerr
			}
			out, err = sjson.SetRawBytes(out, k, childBytes)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case v.IsArray():
		out := []byte("[]")
		var err error
		idx := 0
		v.ForEach(func(_, value gjson.Result) bool {
			var childBytes []byte
			childBytes, err = canonicalizeValue(value)
			if err != nil {
				return false
			}
			out, err = sjson.SetRawBytes(out, strconv.Itoa(idx), childBytes)
			idx++
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return []byte(v.Raw), nil
	}
}
