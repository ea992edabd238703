package engine

import "testing"

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Target
		wantErr bool
	}{
		{
			name: "plocal unix path",
			url:  "plocal:/tmp/databases/ycsb",
			want: Target{Scheme: "plocal", Location: "/tmp/databases/ycsb", Name: "ycsb"},
		},
		{
			name: "plocal windows path",
			url:  "plocal:C:/temp/databases/ycsb",
			want: Target{Scheme: "plocal", Location: "C:/temp/databases/ycsb", Name: "ycsb"},
		},
		{
			name: "remote with database name",
			url:  "remote:localhost:2424/bench",
			want: Target{Scheme: "remote", Location: "localhost:2424", Name: "bench"},
		},
		{
			name: "remote without database name",
			url:  "remote:localhost:2424",
			want: Target{Scheme: "remote", Location: "localhost:2424", Name: DefaultDatabaseName},
		},
		{
			name:    "missing scheme",
			url:     "/tmp/databases/ycsb",
			wantErr: true,
		},
		{
			name:    "empty remainder",
			url:     "plocal:",
			wantErr: true,
		},
		{
			name:    "remote missing host",
			url:     "remote:/bench",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q) failed: %v", tt.url, err)
			}
			if got.Scheme != tt.want.Scheme || got.Location != tt.want.Location || got.Name != tt.want.Name {
				t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
			if got.Raw != tt.url {
				t.Errorf("expected Raw to round trip, got %q", got.Raw)
			}
		})
	}
}
