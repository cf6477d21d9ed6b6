// Package discovery reads the editor's WOPI discovery document, which maps
// file extensions and actions (view, edit, ...) to editor URLs.
package discovery

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Action is one <action> entry of the discovery document.
type Action struct {
	App    string
	Ext    string
	Name   string
	URLSrc string
}

type xmlDiscovery struct {
	NetZones []struct {
		Apps []xmlApp `xml:"app"`
	} `xml:"net-zone"`
}

type xmlApp struct {
	Name    string `xml:"name,attr"`
	Actions []struct {
		Ext    string `xml:"ext,attr"`
		Name   string `xml:"name,attr"`
		URLSrc string `xml:"urlsrc,attr"`
	} `xml:"action"`
}

// Table is a parsed discovery document. Apps named after a mime type
// ("application/vnd.ms-excel") are the legacy form and are indexed by mime
// type instead of extension.
type Table struct {
	byExt  map[string][]Action
	byMime map[string]Action
	apps   []string
}

// Parse decodes a discovery document.
func Parse(r io.Reader) (*Table, error) {
	var doc xmlDiscovery
	dec := xml.NewDecoder(r)
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse discovery: %w", err)
	}

	t := &Table{byExt: map[string][]Action{}, byMime: map[string]Action{}}
	for _, zone := range doc.NetZones {
		for _, app := range zone.Apps {
			legacy := strings.Contains(app.Name, "/")
			if !legacy {
				t.apps = append(t.apps, app.Name)
			}
			for _, a := range app.Actions {
				act := Action{App: app.Name, Ext: strings.ToLower(a.Ext), Name: a.Name, URLSrc: a.URLSrc}
				if legacy {
					t.byMime[mimeKey(app.Name, a.Name)] = act
					continue
				}
				t.byExt[act.Ext] = append(t.byExt[act.Ext], act)
			}
		}
	}
	return t, nil
}

// Lookup returns the urlsrc for editing or viewing a file with extension ext.
func (t *Table) Lookup(ext, action string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range t.byExt[ext] {
		if strings.EqualFold(a.Name, action) {
			return a.URLSrc, true
		}
	}
	return "", false
}

// LookupMime resolves through the legacy mime type entries.
func (t *Table) LookupMime(mime, action string) (string, bool) {
	a, ok := t.byMime[mimeKey(mime, action)]
	return a.URLSrc, ok
}

// Actions lists every action registered for ext.
func (t *Table) Actions(ext string) []Action {
	return t.byExt[strings.ToLower(ext)]
}

// Apps lists the non-legacy application names.
func (t *Table) Apps() []string {
	return t.apps
}

func mimeKey(mime, action string) string {
	return strings.ToLower(mime) + "/" + strings.ToLower(action)
}
