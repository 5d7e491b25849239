package magento

import (
	"bytes"
	"encoding/xml"
	"strings"
	"text/template"
	"time"

	"github.com/magesync/backend/internal/domain/integration"
)

type paramKind int

const (
	paramString paramKind = iota
	paramNil
	paramArray
	paramFilter
)

// param is one argument of a SOAP operation
type param struct {
	Name    string
	Kind    paramKind
	Value   string
	Items   []string
	Filters []complexFilter
}

// complexFilter is one entry of a complex_filter: field <op> value
type complexFilter struct {
	Field string
	Op    string
	Value string
}

func stringParam(name, value string) param {
	return param{Name: name, Kind: paramString, Value: value}
}

func nilParam(name string) param {
	return param{Name: name, Kind: paramNil}
}

// optionalParam renders an explicit nil when value is blank
func optionalParam(name, value string) param {
	if strings.TrimSpace(value) == "" {
		return nilParam(name)
	}
	return stringParam(name, value)
}

func arrayParam(name string, items []string) param {
	return param{Name: name, Kind: paramArray, Items: items}
}

// updatedSinceParam filters on updated_at >= since, or renders nil for a zero since
func updatedSinceParam(name string, since time.Time) param {
	if since.IsZero() {
		return nilParam(name)
	}
	return param{
		Name: name,
		Kind: paramFilter,
		Filters: []complexFilter{{
			Field: "updated_at",
			Op:    "from",
			Value: since.UTC().Format(integration.RemoteTimeLayout),
		}},
	}
}

const envelopeTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns1="urn:Magento" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:SOAP-ENC="http://schemas.xmlsoap.org/soap/encoding/" SOAP-ENV:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<SOAP-ENV:Body>
<ns1:{{.Operation}}>
{{- range .Params}}
{{template "param" .}}
{{- end}}
</ns1:{{.Operation}}>
</SOAP-ENV:Body>
</SOAP-ENV:Envelope>
{{define "param" -}}
{{- if eq .Kind 1}}<{{.Name}} xsi:nil="true"/>
{{- else if eq .Kind 2}}<{{.Name}} SOAP-ENC:arrayType="xsd:string[{{len .Items}}]" xsi:type="SOAP-ENC:Array">
{{- range .Items}}<item xsi:type="xsd:string">{{xmlEscape .}}</item>{{end -}}
</{{.Name}}>
{{- else if eq .Kind 3}}<{{.Name}}><complex_filter>
{{- range .Filters}}<item><key xsi:type="xsd:string">{{xmlEscape .Field}}</key><value xsi:type="ns1:associativeEntity"><key xsi:type="xsd:string">{{xmlEscape .Op}}</key><value xsi:type="xsd:string">{{xmlEscape .Value}}</value></value></item>{{end -}}
</complex_filter></{{.Name}}>
{{- else}}<{{.Name}} xsi:type="xsd:string">{{xmlEscape .Value}}</{{.Name}}>
{{- end}}
{{- end}}`

var envelope = template.Must(template.New("envelope").Funcs(template.FuncMap{
	"xmlEscape": xmlEscape,
}).Parse(envelopeTemplate))

func xmlEscape(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// renderEnvelope builds the request body of operation
func renderEnvelope(operation string, params []param) ([]byte, error) {
	var buf bytes.Buffer
	err := envelope.Execute(&buf, struct {
		Operation string
		Params    []param
	}{operation, params})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
