package artifact

import "testing"

func TestKeyNormalizesLeadingSlash(t *testing.T) {
	cases := []struct {
		name     string
		filePath string
		want     string
	}{
		{"without leading slash", "main.py", "owner-1/my-app/main.py"},
		{"with leading slash", "/main.py", "owner-1/my-app/main.py"},
		{"nested path", "src/app.py", "owner-1/my-app/src/app.py"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Key("owner-1", "my-app", tc.filePath); got != tc.want {
				t.Fatalf("Key() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequirementsKey(t *testing.T) {
	if got := RequirementsKey("owner-1", "my-app"); got != "owner-1/my-app/requirements.txt" {
		t.Fatalf("RequirementsKey() = %q", got)
	}
}
