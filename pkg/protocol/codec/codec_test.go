package codec

import (
	"bytes"
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

type body struct {
	Name  string  `json:"name" cbor:"name"`
	Value float64 `json:"value" cbor:"value"`
	Tags  []int   `json:"tags,omitempty" cbor:"tags,omitempty"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON()
	in := body{Name: "depth", Value: 3.2, Tags: []int{1, 2}}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out body
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Name != in.Name || out.Value != in.Value || len(out.Tags) != 2 {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestCBORRoundTripDeterministic(t *testing.T) {
	c := CBOR()
	in := body{Name: "imu", Value: 0.25}
	a, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("canonical encoding not stable")
	}
	var out body
	if err := c.Unmarshal(a, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestProtoRequiresMessage(t *testing.T) {
	c := Proto()
	if _, err := c.Marshal(body{}); err == nil {
		t.Fatalf("marshal accepted a non-proto value")
	}
	if err := c.Unmarshal(nil, &body{}); err == nil {
		t.Fatalf("unmarshal accepted a non-proto target")
	}
}

func TestProtoRoundTrip(t *testing.T) {
	c := Proto()
	in, err := structpb.NewStruct(map[string]any{"enabled": true, "rate": 50.0})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := &structpb.Struct{}
	if err := c.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Fields["enabled"].GetBoolValue() != true || out.Fields["rate"].GetNumberValue() != 50.0 {
		t.Fatalf("round trip = %v", out)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	for _, ct := range []string{"application/json", "application/x-protobuf", "application/cbor"} {
		c := r.Get(ct)
		if c == nil {
			t.Fatalf("no codec for %s", ct)
		}
		if c.ContentType() != ct {
			t.Fatalf("codec for %s reports %s", ct, c.ContentType())
		}
	}
	if r.Get("application/yaml") != nil {
		t.Fatalf("unknown content type resolved")
	}
}
