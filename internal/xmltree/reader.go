// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package xmltree

import (
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoRecords is returned by ParseFile when a well-formed document holds
// no root elements.
var ErrNoRecords = errors.New("no records found")

// ReadRecords scans r for every element named root, at any depth, and calls
// fn with each decoded element in document order. A decode error aborts the
// scan; the caller treats the whole document as unreadable.
func ReadRecords(r io.Reader, root string, fn func(*Node) error) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true

	for index := 0; ; {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parsing XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != root {
			continue
		}

		n, err := decodeElement(decoder, start)
		if err != nil {
			return fmt.Errorf("decoding %s %d: %w", root, index, err)
		}
		if err := fn(n); err != nil {
			return err
		}
		index++
	}
}

// decodeElement builds the tree for start from the decoder's token stream,
// consuming tokens through the matching end element.
func decodeElement(decoder *xml.Decoder, start xml.StartElement) (*Node, error) {
	root := newNode(start)
	stack := []*Node{root}
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			child := newNode(t)
			top.Children = append(top.Children, child)
			top.runs = append(top.runs, "")
			stack = append(stack, child)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return root, nil
			}
		case xml.CharData:
			top.runs[len(top.runs)-1] += string(t)
		}
	}
}

// ParseFile decodes every root element in the file at path. Files ending in
// ".gz" are decompressed on the fly. A document without any root element
// yields ErrNoRecords.
func ParseFile(path, root string) ([]*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var records []*Node
	err = ReadRecords(r, root, func(n *Node) error {
		records = append(records, n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading %s: %w", path, ErrNoRecords)
	}
	return records, nil
}
