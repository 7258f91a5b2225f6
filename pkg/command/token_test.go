package command

import "testing"

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Token
		ok   bool
	}{
		{in: "CAMERA_ON", want: CameraOn, ok: true},
		{in: "  GO_HOME \n", want: GoHome, ok: true},
		{in: "camera_on", want: Token("camera_on"), ok: false},
		{in: "", want: Unknown, ok: false},
		{in: "SELF_DESTRUCT", want: Token("SELF_DESTRUCT"), ok: false},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Parse(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAllIsCopy(t *testing.T) {
	t.Parallel()

	all := All()
	if len(all) != 19 {
		t.Fatalf("expected 19 tokens, got %d", len(all))
	}
	all[0] = Unknown
	if All()[0] != CameraOn {
		t.Fatalf("All must not expose the backing slice")
	}
	if Known(Unknown) {
		t.Fatalf("unknown marker must not be part of the vocabulary")
	}
}
