package codec

import (
	"bytes"
	"reflect"
	"testing"

	"consolefwd/pkg/model"
)

func strPtr(s string) *string { return &s }
func u32Ptr(v uint32) *uint32 { return &v }

func sampleRecords() []model.Record {
	return []model.Record{
		{
			Metadata:   model.Metadata{Level: model.LevelInfo, Target: "mirrord_layer::file"},
			Message:    "opened /etc/hosts",
			ModulePath: strPtr("mirrord_layer::file::ops"),
			File:       strPtr("mirrord/layer/src/file/ops.rs"),
			Line:       u32Ptr(42),
		},
		{
			Metadata: model.Metadata{Level: model.LevelTrace, Target: "mirrord"},
			Message:  "",
		},
		{
			Metadata: model.Metadata{Level: model.LevelError, Target: "mirrord::agent"},
			Message:  "unicode ✓ and \"quotes\"\nnewline",
			Line:     u32Ptr(0),
		},
		model.Record{
			Metadata: model.Metadata{Level: model.LevelDebug, Target: "mirrord\xc3"},
			Message:  "bytes \xff\xfe end",
			File:     strPtr("bad\x80.rs"),
		}.Sanitized(),
	}
}

func sampleHello() model.Hello {
	return model.Hello{ProcessInfo: model.ProcessInfo{
		Args: []string{"/usr/bin/app", "--flag"},
		Env:  []string{"HOME=/root", "EMPTY=", "RAW=\xff"},
		Cwd:  strPtr("/srv"),
		ID:   4242,
	}.Sanitized()}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			for i, rec := range sampleRecords() {
				data, err := c.Marshal(rec)
				if err != nil {
					t.Fatalf("record %d: Marshal: %v", i, err)
				}
				var got model.Record
				if err := c.Unmarshal(data, &got); err != nil {
					t.Fatalf("record %d: Unmarshal: %v", i, err)
				}
				if !reflect.DeepEqual(got, rec) {
					t.Errorf("record %d: got %+v, want %+v", i, got, rec)
				}
			}

			hello := sampleHello()
			data, err := c.Marshal(hello)
			if err != nil {
				t.Fatalf("hello Marshal: %v", err)
			}
			var got model.Hello
			if err := c.Unmarshal(data, &got); err != nil {
				t.Fatalf("hello Unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, hello) {
				t.Errorf("hello: got %+v, want %+v", got, hello)
			}
		})
	}
}

func TestDeterministic(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			rec := sampleRecords()[0]
			first, err := c.Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			for i := 0; i < 10; i++ {
				again, err := c.Marshal(rec)
				if err != nil {
					t.Fatalf("Marshal: %v", err)
				}
				if !bytes.Equal(first, again) {
					t.Fatalf("encoding %d differs: %x vs %x", i, again, first)
				}
			}
		})
	}
}

func TestJSONWireFormat(t *testing.T) {
	rec := model.Record{
		Metadata: model.Metadata{Level: model.LevelWarn, Target: "mirrord"},
		Message:  "hi",
	}
	data, err := JSON.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"metadata":{"level":"WARN","target":"mirrord"},"message":"hi","module_path":null,"file":null,"line":null}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}

	hello := model.Hello{ProcessInfo: model.ProcessInfo{Args: []string{"a"}, Env: []string{"K=V"}, ID: 7}}
	data, err = JSON.Marshal(hello)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want = `{"process_info":{"args":["a"],"env":["K=V"],"cwd":null,"id":7}}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestCBORLevelIsText(t *testing.T) {
	data, err := CBOR.Marshal(model.Metadata{Level: model.LevelDebug, Target: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(data, []byte("DEBUG")) {
		t.Errorf("expected level name in CBOR output, got %x", data)
	}
}

func TestInvalidLevelFailsToEncode(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		if _, err := c.Marshal(model.Metadata{Target: "mirrord"}); err == nil {
			t.Errorf("%s: expected error for zero level", c.Name())
		}
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Codec
		wantErr bool
	}{
		{name: "", want: JSON},
		{name: "json", want: JSON},
		{name: "CBOR", want: CBOR},
		{name: " cbor ", want: CBOR},
		{name: "msgpack", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ByName(%q) = %s, want %s", tt.name, got.Name(), tt.want.Name())
			}
		})
	}
}
