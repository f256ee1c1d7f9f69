// Package feed holds the in-memory feed document: its entries are read in
// source order, their descriptions may be replaced, and the whole tree is
// written back once.
package feed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/renameio/v2"
	"golang.org/x/net/html/charset"
)

// ErrMalformedDocument is returned by Load when the input cannot be parsed or
// has no channel under its root element.
var ErrMalformedDocument = errors.New("malformed feed document")

const (
	tagChannel     = "channel"
	tagItem        = "item"
	tagLink        = "link"
	tagTitle       = "title"
	tagDescription = "description"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
)

// Entry is a handle to one item of a Document. Handles are only meaningful
// for the document that produced them.
type Entry struct {
	Index int
}

type Document struct {
	doc     *etree.Document
	channel *etree.Element
	items   []*etree.Element
}

func Load(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	channel := child(root, tagChannel)
	if channel == nil {
		return nil, fmt.Errorf("%w: no <%s> under <%s>", ErrMalformedDocument, tagChannel, root.Tag)
	}
	doc.WriteSettings.CanonicalText = true
	normalizeDeclaration(doc)
	return &Document{
		doc:     doc,
		channel: channel,
		items:   children(channel, tagItem),
	}, nil
}

func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Entries returns handles for every item, in source order.
func (d *Document) Entries() []Entry {
	out := make([]Entry, len(d.items))
	for i := range d.items {
		out[i] = Entry{Index: i}
	}
	return out
}

func (d *Document) Len() int { return len(d.items) }

func (d *Document) ChannelTitle() string {
	if el := child(d.channel, tagTitle); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// Link returns the trimmed link of e. An absent or blank link reports false.
func (d *Document) Link(e Entry) (string, bool) {
	link := strings.TrimSpace(d.childText(e, tagLink))
	return link, link != ""
}

func (d *Document) Title(e Entry) string {
	return strings.TrimSpace(d.childText(e, tagTitle))
}

// Description returns the current description text of e and whether the
// element exists.
func (d *Document) Description(e Entry) (string, bool) {
	el := child(d.item(e), tagDescription)
	if el == nil {
		return "", false
	}
	return el.Text(), true
}

// SetDescription replaces the description of e with fragment, written as a
// CDATA section so embedded markup is not escaped. The element is appended to
// the item when missing.
func (d *Document) SetDescription(e Entry, fragment string) {
	item := d.item(e)
	desc := child(item, tagDescription)
	if desc == nil {
		desc = item.CreateElement(tagDescription)
	}
	for _, tok := range append([]etree.Token(nil), desc.Child...) {
		desc.RemoveChild(tok)
	}
	for _, chunk := range cdataChunks(fragment) {
		desc.CreateCData(chunk)
	}
}

// WriteTo serializes the whole document. An XML declaration is emitted when
// the source had none.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var n int64
	if !d.hasDeclaration() {
		m, err := io.WriteString(w, xmlHeader)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	m, err := d.doc.WriteTo(w)
	return n + m, err
}

// Save writes the document to path through a temporary file in the same
// directory followed by a rename, so readers never see a partial file. An
// existing destination keeps its permissions.
func (d *Document) Save(path string) error {
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
		renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := d.WriteTo(pf); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (d *Document) item(e Entry) *etree.Element {
	if e.Index < 0 || e.Index >= len(d.items) {
		panic(fmt.Sprintf("feed: entry index %d out of range [0,%d)", e.Index, len(d.items)))
	}
	return d.items[e.Index]
}

func (d *Document) childText(e Entry, tag string) string {
	el := child(d.item(e), tag)
	if el == nil {
		return ""
	}
	return el.Text()
}

// child returns the first un-namespaced child element named tag, so that
// e.g. <atom:link> is never mistaken for <link>.
func child(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Space == "" && c.Tag == tag {
			return c
		}
	}
	return nil
}

func children(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Space == "" && c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// normalizeDeclaration rewrites a non-UTF-8 encoding declaration, since the
// tree is always written back as UTF-8.
func normalizeDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		pi, ok := tok.(*etree.ProcInst)
		if !ok || pi.Target != "xml" {
			continue
		}
		inst := strings.ToLower(pi.Inst)
		if strings.Contains(inst, "encoding") && !strings.Contains(inst, "utf-8") {
			pi.Inst = `version="1.0" encoding="UTF-8"`
		}
	}
}

func (d *Document) hasDeclaration() bool {
	for _, tok := range d.doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return true
		}
	}
	return false
}

// cdataChunks splits s so that no chunk contains the CDATA terminator. The
// chunks concatenate back to s.
func cdataChunks(s string) []string {
	const term = "]]>"
	if !strings.Contains(s, term) {
		return []string{s}
	}
	parts := strings.Split(s, term)
	chunks := make([]string, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = ">" + p
		}
		if i < len(parts)-1 {
			p += "]]"
		}
		chunks[i] = p
	}
	return chunks
}
