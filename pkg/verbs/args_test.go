package verbs

import "testing"

func TestArgString_MissingKeyReturnsEmpty(t *testing.T) {
	if got := argString(map[string]interface{}{}, "x"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestArgInt_DecodesJSONNumberTypes(t *testing.T) {
	cases := []struct {
		name string
		args map[string]interface{}
		want int
	}{
		{"float64 from JSON", map[string]interface{}{"n": float64(42)}, 42},
		{"int", map[string]interface{}{"n": 7}, 7},
		{"int64", map[string]interface{}{"n": int64(9)}, 9},
		{"missing falls back", map[string]interface{}{}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := argInt(tc.args, "n", 5); got != tc.want {
				t.Fatalf("argInt() = %d, want %d", got, tc.want)
			}
		})
	}
}
