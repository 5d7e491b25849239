package integration

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteTimeLayout is the timestamp layout the remote API reads and writes.
const RemoteTimeLayout = "2006-01-02 15:04:05"

var remoteTimeLayouts = []string{
	RemoteTimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindDecimal
	kindBool
	kindInt
	kindTime
	kindOrderStatus
	kindProductStatus
	kindStrings
	kindRecords
)

var (
	stringType        = reflect.TypeOf("")
	decimalType       = reflect.TypeOf(decimal.Decimal{})
	timeType          = reflect.TypeOf(time.Time{})
	orderStatusType   = reflect.TypeOf(OrderStatus(""))
	productStatusType = reflect.TypeOf(ProductStatus(""))
)

type boundField struct {
	index []int
	names []string
	kind  fieldKind
	elem  reflect.Type
}

// bindPlans caches one field table per destination type
var bindPlans sync.Map

// Bind fills dst, a pointer to a struct, from raw using the `magento`
// field tags. Fields the remote did not send, or sent blank, stay nil.
// Enum fields that match no known value also stay nil. A value that is
// present but malformed (e.g. a non-numeric amount) fails with ErrRemoteParse.
func Bind(raw RawRecord, dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("integration: Bind needs a non-nil struct pointer, got %T", dst)
	}
	plan, err := planFor(v.Elem().Type())
	if err != nil {
		return err
	}
	return bindStruct(raw, v.Elem(), plan)
}

func bindStruct(raw RawRecord, v reflect.Value, plan []boundField) error {
	for _, f := range plan {
		field := v.FieldByIndex(f.index)

		switch f.kind {
		case kindRecords:
			children := lookupList(raw, f.names)
			if children == nil {
				continue
			}
			childPlan, err := planFor(f.elem)
			if err != nil {
				return err
			}
			out := reflect.MakeSlice(field.Type(), 0, len(children))
			for _, child := range children {
				elem := reflect.New(f.elem).Elem()
				if err := bindStruct(child, elem, childPlan); err != nil {
					return err
				}
				out = reflect.Append(out, elem)
			}
			field.Set(out)

		case kindStrings:
			if values := stringsOf(raw, f.names); len(values) > 0 {
				field.Set(reflect.ValueOf(values))
			}

		default:
			value, ok := lookup(raw, f.names)
			if !ok {
				continue
			}
			if err := assign(field, f.kind, value); err != nil {
				return fmt.Errorf("%w: field %s: %v", ErrRemoteParse, f.names[0], err)
			}
		}
	}
	return nil
}

func assign(field reflect.Value, kind fieldKind, value string) error {
	switch kind {
	case kindString:
		s := value
		field.Set(reflect.ValueOf(&s))
	case kindDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(&d))
	case kindInt:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return err
		}
		n := int(d.Round(0).IntPart())
		field.Set(reflect.ValueOf(&n))
	case kindBool:
		if b, ok := ParseFlag(value); ok {
			field.Set(reflect.ValueOf(&b))
		}
	case kindTime:
		t, ok, err := ParseRemoteTime(value)
		if err != nil {
			return err
		}
		if ok {
			field.Set(reflect.ValueOf(&t))
		}
	case kindOrderStatus:
		if s, ok := ParseOrderStatus(value); ok {
			field.Set(reflect.ValueOf(&s))
		}
	case kindProductStatus:
		if s, ok := ParseProductStatus(value); ok {
			field.Set(reflect.ValueOf(&s))
		}
	}
	return nil
}

func lookup(raw RawRecord, names []string) (string, bool) {
	for _, name := range names {
		if v, ok := raw.Get(name); ok {
			return v, true
		}
	}
	return "", false
}

func lookupList(raw RawRecord, names []string) []RawRecord {
	for _, name := range names {
		if list, ok := raw.Lists[name]; ok {
			return list
		}
	}
	return nil
}

// stringsOf reads a scalar array (<item>a</item><item>b</item>) or a
// comma separated field.
func stringsOf(raw RawRecord, names []string) []string {
	var out []string
	if list := lookupList(raw, names); len(list) > 0 {
		for _, item := range list {
			if v, ok := item.Get(TextKey); ok {
				out = append(out, v)
			}
		}
		return out
	}
	value, ok := lookup(raw, names)
	if !ok {
		return nil
	}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func planFor(t reflect.Type) ([]boundField, error) {
	if cached, ok := bindPlans.Load(t); ok {
		return cached.([]boundField), nil
	}
	plan, err := buildPlan(t, nil)
	if err != nil {
		return nil, err
	}
	bindPlans.Store(t, plan)
	return plan, nil
}

func buildPlan(t reflect.Type, prefix []int) ([]boundField, error) {
	var plan []boundField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		tag := sf.Tag.Get("magento")
		if sf.Anonymous && tag == "" && sf.Type.Kind() == reflect.Struct {
			embedded, err := buildPlan(sf.Type, index)
			if err != nil {
				return nil, err
			}
			plan = append(plan, embedded...)
			continue
		}
		if tag == "" || tag == "-" {
			continue
		}

		kind, elem, err := kindOf(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("integration: field %s.%s: %w", t.Name(), sf.Name, err)
		}
		plan = append(plan, boundField{
			index: index,
			names: strings.Split(tag, ","),
			kind:  kind,
			elem:  elem,
		})
	}
	return plan, nil
}

func kindOf(t reflect.Type) (fieldKind, reflect.Type, error) {
	switch t.Kind() {
	case reflect.Pointer:
		switch e := t.Elem(); {
		case e == stringType:
			return kindString, nil, nil
		case e == decimalType:
			return kindDecimal, nil, nil
		case e == timeType:
			return kindTime, nil, nil
		case e == orderStatusType:
			return kindOrderStatus, nil, nil
		case e == productStatusType:
			return kindProductStatus, nil, nil
		case e.Kind() == reflect.Bool:
			return kindBool, nil, nil
		case e.Kind() == reflect.Int:
			return kindInt, nil, nil
		}
	case reflect.Slice:
		switch e := t.Elem(); {
		case e == stringType:
			return kindStrings, nil, nil
		case e.Kind() == reflect.Struct:
			return kindRecords, e, nil
		}
	}
	return 0, nil, fmt.Errorf("unsupported type %s", t)
}

// ParseFlag reads the boolean spellings the remote uses. The second result
// is false for anything else, which callers treat as "not sent".
func ParseFlag(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}

// ParseRemoteTime parses a remote timestamp as UTC. The zero date the
// remote uses for "never" reports ok=false without an error.
func ParseRemoteTime(value string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "0000-00-00") {
		return time.Time{}, false, nil
	}
	var lastErr error
	for _, layout := range remoteTimeLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t.UTC(), true, nil
		}
		lastErr = err
	}
	return time.Time{}, false, lastErr
}
