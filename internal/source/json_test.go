package source

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlexString(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexString
		wantErr bool
	}{
		{in: `{"v":"abc"}`, want: "abc"},
		{in: `{"v":1200}`, want: "1200"},
		{in: `{"v":1200.5}`, want: "1200.5"},
		{in: `{"v":null}`, want: ""},
		{in: `{"v":true}`, wantErr: true},
	}
	for _, tt := range tests {
		var got struct {
			V FlexString `json:"v"`
		}
		err := json.Unmarshal([]byte(tt.in), &got)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Unmarshal(%s): expected error, got nil", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal(%s): %v", tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got.V); diff != "" {
			t.Errorf("Unmarshal(%s) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestUnwrapJSONP(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "callback", in: `callback({"a":1});`, want: `{"a":1}`},
		{name: "with whitespace", in: "\n callback( {\"a\":[1,2]} )\n", want: ` {"a":[1,2]} `},
		{name: "plain json", in: `{"a":1}`, want: `{"a":1}`},
		{name: "empty", in: "  ", wantErr: true},
		{name: "html", in: "<html>blocked</html>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnwrapJSONP([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, string(got)); diff != "" {
				t.Errorf("UnwrapJSONP() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
