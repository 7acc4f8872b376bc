package runner

import (
	"reflect"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name       string
		verbs      []string
		targets    []string
		additional string
		want       []string
	}{
		{
			name:  "verbs only",
			verbs: []string{"test"},
			want:  []string{"test", "--json"},
		},
		{
			name:       "targets and additional",
			verbs:      []string{"test"},
			targets:    []string{"/src/app", "/src/lib"},
			additional: "--all-projects --severity-threshold=high",
			want:       []string{"test", "/src/app", "/src/lib", "--json", "--all-projects", "--severity-threshold=high"},
		},
		{
			name:       "quoted additional",
			verbs:      []string{"iac", "test"},
			additional: `--exclude="node modules" --org='my org'`,
			want:       []string{"iac", "test", "--json", "--exclude=node modules", "--org=my org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildArgs(tt.verbs, tt.targets, tt.additional)
			if err != nil {
				t.Fatalf("BuildArgs() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgs_InvalidAdditional(t *testing.T) {
	if _, err := BuildArgs([]string{"test"}, nil, `--org="unterminated`); err == nil {
		t.Fatal("BuildArgs() error = nil, want error")
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "a b\tc", want: []string{"a", "b", "c"}},
		{in: `"a b" c`, want: []string{"a b", "c"}},
		{in: `'a "b"'`, want: []string{`a "b"`}},
		{in: `"a \"b\""`, want: []string{`a "b"`}},
		{in: `a\ b`, want: []string{"a b"}},
		{in: `'a\b'`, want: []string{`a\b`}},
		{in: `""`, want: []string{""}},
		{in: `x="" y`, want: []string{"x=", "y"}},
		{in: `'open`, wantErr: true},
		{in: `"open`, wantErr: true},
		{in: `trailing\`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SplitArgs(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SplitArgs(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitArgs(%q) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitArgs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
