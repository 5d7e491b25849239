package magento

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/magesync/backend/internal/domain/integration"
)

// containerNames are the elements a response may wrap its payload in.
// Older and newer WSDLs disagree, so every variant is accepted.
var containerNames = []string{
	"result",
	"info",
	"loginReturn",
	"return",
	"salesOrderEntity",
	"customerAddressEntity",
	"catalogProductReturnEntity",
}

func isContainer(name string) bool {
	for _, c := range containerNames {
		if c == name {
			return true
		}
	}
	return false
}

// xmlNode is an element of a decoded response. Only local names are kept.
type xmlNode struct {
	name     string
	isNil    bool
	text     []byte
	children []*xmlNode
}

func (n *xmlNode) value() string {
	if n.isNil {
		return ""
	}
	return string(n.text)
}

func (n *xmlNode) child(name string) *xmlNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find searches depth first
func (n *xmlNode) find(name string) *xmlNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

func (n *xmlNode) isArray() bool {
	if len(n.children) == 0 {
		return false
	}
	for _, c := range n.children {
		if c.name != "item" {
			return false
		}
	}
	return true
}

func (n *xmlNode) isAssociative() bool {
	return len(n.children) == 2 && n.child("key") != nil && n.child("value") != nil
}

// parseXML reads a whole document into a tree
func parseXML(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	root := &xmlNode{}
	stack := []*xmlNode{root}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Local == "nil" && a.Value == "true" {
					n.isNil = true
				}
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top := stack[len(stack)-1]
			top.text = append(top.text, t...)
		}
	}
	if len(root.children) == 0 {
		return nil, errors.New("document has no elements")
	}
	return root, nil
}

// faultOf returns the SOAP fault carried by the document, if any
func faultOf(root *xmlNode) *integration.RemoteFault {
	body := root.find("Body")
	if body == nil {
		return nil
	}
	fault := body.child("Fault")
	if fault == nil {
		return nil
	}
	f := &integration.RemoteFault{Message: "SOAP fault"}
	if code := fault.find("faultcode"); code != nil {
		f.Code = strings.TrimSpace(code.value())
	}
	if msg := fault.find("faultstring"); msg != nil {
		if s := strings.TrimSpace(msg.value()); s != "" {
			f.Message = s
		}
	}
	return f
}

// responseOf returns the operation response element, e.g. <ns1:loginResponse>
func responseOf(root *xmlNode) (*xmlNode, error) {
	body := root.find("Body")
	if body == nil {
		return nil, fmt.Errorf("%w: response has no SOAP body", integration.ErrRemoteParse)
	}
	if len(body.children) == 0 {
		return nil, fmt.Errorf("%w: SOAP body is empty", integration.ErrRemoteParse)
	}
	return body.children[0], nil
}

// payloadOf locates the record container of a response. A payload placed
// directly under the response element is returned as is; single-child
// container chains such as <result><salesOrderEntity> are unwrapped.
func payloadOf(resp *xmlNode) (*xmlNode, bool) {
	var payload *xmlNode
	for _, name := range containerNames {
		if c := resp.child(name); c != nil {
			payload = c
			break
		}
	}
	if payload == nil {
		return resp, false
	}
	for len(payload.children) == 1 && isContainer(payload.children[0].name) {
		payload = payload.children[0]
	}
	return payload, true
}

// decodeRecord converts a single-record response
func decodeRecord(resp *xmlNode) (integration.RawRecord, error) {
	payload, _ := payloadOf(resp)
	if len(payload.children) == 0 {
		return integration.RawRecord{}, fmt.Errorf("%w: no record in %s", integration.ErrRemoteParse, resp.name)
	}
	rec := toRecord(payload)
	if len(rec.Fields) == 0 && len(rec.Lists) == 0 {
		return integration.RawRecord{}, fmt.Errorf("%w: no record in %s", integration.ErrRemoteParse, resp.name)
	}
	return rec, nil
}

// decodeList converts a list response. A missing or empty container is an
// empty list.
func decodeList(resp *xmlNode) []integration.RawRecord {
	payload, _ := payloadOf(resp)
	var out []integration.RawRecord
	for _, c := range payload.children {
		if c.name == "item" {
			out = append(out, toRecord(c))
		}
	}
	return out
}

// toRecord flattens an element into a RawRecord:
//   - leaf children become fields
//   - <x><item/>...</x> arrays become Lists["x"]; key/value pairs are also
//     copied into the fields so custom attributes read like plain ones
//   - nested structs are flattened with a prefix, <shipping_address><city>
//     becomes shipping_city, unless the response sent that field directly
func toRecord(n *xmlNode) integration.RawRecord {
	rec := integration.NewRawRecord()
	if len(n.children) == 0 {
		rec.Set(integration.TextKey, n.value())
		return rec
	}

	var nested []*xmlNode
	for _, c := range n.children {
		switch {
		case len(c.children) == 0:
			rec.Set(c.name, c.value())
		case c.isArray():
			for _, item := range c.children {
				child := toRecord(item)
				rec.Append(c.name, child)
				if item.isAssociative() {
					if k, ok := child.Get("key"); ok && !rec.Has(k) {
						rec.Set(k, child.Fields["value"])
					}
				}
			}
		default:
			nested = append(nested, c)
		}
	}

	for _, c := range nested {
		prefix := strings.TrimSuffix(c.name, "_address") + "_"
		sub := toRecord(c)
		for k, v := range sub.Fields {
			if !rec.Has(prefix + k) {
				rec.Set(prefix+k, v)
			}
		}
		for k, list := range sub.Lists {
			for _, item := range list {
				rec.Append(prefix+k, item)
			}
		}
	}
	return rec
}
