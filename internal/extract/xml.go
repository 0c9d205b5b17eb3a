package extract

import (
	"slices"
	"strings"
)

// dsObject mirrors one top-level export object. Property and ACL child
// element names vary, so those lists decode with xml:",any".
type dsObject struct {
	ClassName string     `xml:"classname,attr"`
	Handle    string     `xml:"handle,attr"`
	Props     *dsProps   `xml:"props"`
	ACLs      *dsACLs    `xml:"acls"`
	DestLinks dsLinks    `xml:"destinationlinks"`
	Versions  *dsObjects `xml:"versions"`
	Inner     string     `xml:",innerxml"`
}

type dsProps struct {
	Items []dsProp `xml:",any"`
}

type dsProp struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type dsACLs struct {
	Items []dsACL `xml:",any"`
}

type dsACL struct {
	Principal   string `xml:"principal,attr"`
	Permissions string `xml:"permissions,attr"`
}

type dsLinks struct {
	Owners           []string `xml:"owner"`
	Containment      []string `xml:"containment"`
	PreferredVersion []string `xml:"preferredVersion"`
}

type dsObjects struct {
	Objects []dsVersion `xml:"dsobject"`
}

type dsVersion struct {
	Handle     string        `xml:"handle,attr"`
	Renditions []dsRendition `xml:"renditions>dsobject"`
}

type dsRendition struct {
	Props           *dsProps           `xml:"props"`
	ContentElements []dsContentElement `xml:"contentelements>contentelement"`
}

type dsContentElement struct {
	Filename string `xml:"filename,attr"`
	Label    string `xml:",chardata"`
}

func (o *dsObject) props() []dsProp {
	if o.Props == nil {
		return nil
	}
	return o.Props.Items
}

// owner returns the last owner link, "" when none.
func (o *dsObject) owner() string {
	if n := len(o.DestLinks.Owners); n > 0 {
		return strings.TrimSpace(o.DestLinks.Owners[n-1])
	}
	return ""
}

// containment returns the declared child handles in declaration order.
func (o *dsObject) containment() []string {
	out := make([]string, 0, len(o.DestLinks.Containment))
	for _, c := range o.DestLinks.Containment {
		out = append(out, strings.TrimSpace(c))
	}
	return out
}

func (o *dsObject) preferredVersion() string {
	if len(o.DestLinks.PreferredVersion) > 0 {
		return strings.TrimSpace(o.DestLinks.PreferredVersion[0])
	}
	return ""
}

// private derives the visibility flag: a record is non-private iff at
// least one public-like group holds the read permission. Computed once
// here and never re-derived downstream.
func (o *dsObject) private(opts Options) bool {
	if o.ACLs == nil {
		return true
	}
	for _, acl := range o.ACLs.Items {
		if slices.Contains(opts.PublicGroups, acl.Principal) &&
			strings.Contains(acl.Permissions, opts.ReadPermission) {
			return false
		}
	}
	return true
}

func (r *dsRendition) props() []dsProp {
	if r.Props == nil {
		return nil
	}
	return r.Props.Items
}
