// Package extract converts raw export XML into records. The export format
// is a flat list of objects, each tagged with a class name and a stable
// handle, carrying nested property, ACL, link and version structures.
package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/docudump/internal/record"
)

// Options controls an extraction pass.
type Options struct {
	// Details selects the expensive per-item pass: versions, renditions,
	// sizes and titles are resolved. Without it, documents and URL
	// shortcuts are stored as kind-only stubs.
	Details bool

	// PublicGroups are the ACL principals whose read grant makes a
	// record non-private.
	PublicGroups []string

	// ReadPermission is the permission token looked for in ACL entries.
	ReadPermission string

	// IgnoreTypes are class names recorded as skippable stubs.
	IgnoreTypes []string
}

// IntegrityError reports a violation of the export schema assumptions.
// These are fatal: they mean the extractor's model of the source data is
// wrong and must be fixed, not worked around.
type IntegrityError struct {
	Handle string
	Reason string
	Raw    string // inner XML of the offending object, for diagnosis
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("record %s: %s", e.Handle, e.Reason)
}

// createDateLayout matches the export's timestamp format,
// e.g. "Mon Jan 02 15:04:05 UTC 2006".
const createDateLayout = "Mon Jan 02 15:04:05 MST 2006"

// Sanitize strips characters that are illegal in XML: control characters
// other than tab/newline/carriage return, the surrogate range, U+FFFE and
// U+FFFF. Bytes that do not decode as UTF-8 are dropped as well.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20:
			return -1
		case r >= 0xD800 && r <= 0xDFFF:
			return -1
		case r == 0xFFFE || r == 0xFFFF:
			return -1
		case r == 0xFFFD:
			// Replacement runes come from invalid input bytes.
			return -1
		}
		return r
	}, s)
}

// Extract sanitizes data, parses it, and adds one record per recognized
// top-level object to dst. Objects lacking a class name attribute are
// skipped; an unrecognized class name is an *IntegrityError.
func Extract(data []byte, opts Options, dst *record.Store) error {
	return parse(strings.NewReader(Sanitize(string(data))), opts, dst)
}

// parse consumes top-level objects one at a time so that peak memory is
// bounded by the largest single object, not the whole export.
func parse(r io.Reader, opts Options, dst *record.Store) error {
	dec := xml.NewDecoder(r)
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse export: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				depth++
				continue
			}
			var obj dsObject
			if err := dec.DecodeElement(&obj, &t); err != nil {
				return fmt.Errorf("decode object: %w", err)
			}
			if err := convert(&obj, opts, dst); err != nil {
				return err
			}
		case xml.EndElement:
			depth--
		}
	}
}

func convert(obj *dsObject, opts Options, dst *record.Store) error {
	if obj.ClassName == "" {
		return nil
	}
	id := obj.Handle

	switch obj.ClassName {
	case "Document":
		if !opts.Details {
			dst.Put(&record.Record{
				ID:              id,
				Kind:            record.KindDocument,
				Owner:           obj.owner(),
				Private:         obj.private(opts),
				VisibilityKnown: obj.ACLs != nil,
			})
			return nil
		}
		return convertDocumentDetail(obj, opts, dst)

	case "Collection":
		rec := &record.Record{
			ID:              id,
			Kind:            record.KindCollection,
			SortOrder:       "Title",
			Owner:           obj.owner(),
			Private:         obj.private(opts),
			VisibilityKnown: obj.ACLs != nil,
			Children:        obj.containment(),
		}
		if len(obj.props()) == 0 {
			rec.Title = id
		}
		for _, p := range obj.props() {
			switch p.Name {
			case "title":
				rec.Title = strings.TrimSpace(p.Value)
			case "sort_order":
				rec.SortOrder = strings.TrimSpace(p.Value)
			case "create_date":
				rec.CreateDate = parseCreateDate(p.Value)
			}
		}
		dst.Put(rec)
		return nil

	case "URL":
		if !opts.Details {
			dst.Put(&record.Record{
				ID:              id,
				Kind:            record.KindURL,
				Owner:           obj.owner(),
				Private:         obj.private(opts),
				VisibilityKnown: obj.ACLs != nil,
			})
			return nil
		}
		rec := &record.Record{
			ID:              id,
			Kind:            record.KindURL,
			Owner:           obj.owner(),
			Private:         obj.private(opts),
			VisibilityKnown: obj.ACLs != nil,
			Detailed:        true,
		}
		if len(obj.props()) == 0 {
			rec.Title = id
		}
		for _, p := range obj.props() {
			switch p.Name {
			case "title":
				rec.Title = strings.TrimSpace(p.Value)
			case "url":
				rec.URL = strings.TrimSpace(p.Value)
			}
		}
		if rec.URL == "" {
			// A shortcut without a target is useless downstream; filter
			// it out entirely rather than storing an invalid record.
			return nil
		}
		dst.Put(rec)
		return nil

	case "User":
		if obj.Props == nil {
			return &IntegrityError{Handle: id, Reason: "user has no props", Raw: obj.Inner}
		}
		for _, p := range obj.props() {
			if p.Name == "username" {
				dst.Put(&record.Record{
					ID:       id,
					Kind:     record.KindUser,
					Username: strings.TrimSpace(p.Value),
				})
				return nil
			}
		}
		return &IntegrityError{Handle: id, Reason: "user has no username", Raw: obj.Inner}

	default:
		if slices.Contains(opts.IgnoreTypes, obj.ClassName) {
			dst.Put(&record.Record{
				ID:      id,
				Kind:    record.Kind(obj.ClassName),
				Ignored: true,
			})
			return nil
		}
		return &IntegrityError{
			Handle: id,
			Reason: fmt.Sprintf("unrecognized record kind %q", obj.ClassName),
			Raw:    obj.Inner,
		}
	}
}

// convertDocumentDetail resolves the authoritative version and its single
// rendition, which supply size, create date, the on-disk content filename
// and the title fallback.
func convertDocumentDetail(obj *dsObject, opts Options, dst *record.Store) error {
	id := obj.Handle
	rec := &record.Record{
		ID:              id,
		Kind:            record.KindDocument,
		Title:           id,
		Owner:           obj.owner(),
		Private:         obj.private(opts),
		VisibilityKnown: obj.ACLs != nil,
		Detailed:        true,
		Size:            -1,
	}
	for _, p := range obj.props() {
		switch p.Name {
		case "title":
			rec.Title = strings.TrimSpace(p.Value)
		case "original_file_name":
			rec.OriginalFileName = strings.TrimSpace(p.Value)
		}
	}

	if obj.Versions == nil {
		return &IntegrityError{Handle: id, Reason: "document has no versions", Raw: obj.Inner}
	}
	var version *dsVersion
	if len(obj.Versions.Objects) == 1 {
		version = &obj.Versions.Objects[0]
	} else {
		preferred := obj.preferredVersion()
		if preferred == "" {
			return &IntegrityError{Handle: id, Reason: "multiple versions but no preferred-version link", Raw: obj.Inner}
		}
		for i := range obj.Versions.Objects {
			if obj.Versions.Objects[i].Handle == preferred {
				version = &obj.Versions.Objects[i]
				break
			}
		}
		if version == nil {
			return &IntegrityError{
				Handle: id,
				Reason: fmt.Sprintf("preferred version %s not among versions", preferred),
				Raw:    obj.Inner,
			}
		}
	}

	switch n := len(version.Renditions); {
	case n == 0:
		return &IntegrityError{Handle: id, Reason: "version has no rendition", Raw: obj.Inner}
	case n > 1:
		return &IntegrityError{Handle: id, Reason: fmt.Sprintf("version has %d renditions, want 1", n), Raw: obj.Inner}
	}
	rendition := &version.Renditions[0]
	for _, p := range rendition.props() {
		switch p.Name {
		case "size":
			if v, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64); err == nil {
				rec.Size = v
			}
		case "create_date":
			rec.CreateDate = parseCreateDate(p.Value)
		}
	}
	if len(rendition.ContentElements) > 0 {
		ce := rendition.ContentElements[0]
		rec.ContentFilename = ce.Filename
		if rec.Title == id {
			// No human title was ever set; the content element's own
			// label is the best available one.
			rec.Title = strings.TrimSpace(ce.Label)
		}
	}

	dst.Put(rec)
	return nil
}

func parseCreateDate(s string) time.Time {
	t, err := time.Parse(createDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
