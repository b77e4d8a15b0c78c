package normalize

import "testing"

func TestCleanupStripsFraming(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "psql ruler and QUERY PLAN header",
			in:   "                         QUERY PLAN\n----------------------------------------\n Seq Scan on foo\n(1 row)\n",
			want: " Seq Scan on foo\n",
		},
		{
			name: "pipe framing",
			in:   "| Seq Scan on foo |\n",
			want: " Seq Scan on foo \n",
		},
		{
			name: "quoted copy paste line",
			in:   "  \"Seq Scan on foo\"\n",
			want: "  Seq Scan on foo\n",
		},
		{
			name: "plus continuation",
			in:   "Seq Scan on foo  +\n  (cost=0.00)\n",
			want: "Seq Scan on foo  \n  (cost=0.00)\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cleanup(tc.in)
			if got != tc.want {
				t.Fatalf("Cleanup(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	in := "                         QUERY PLAN\n----------------------------------------\n \"Seq Scan on foo\"\n(3 rows)\n"
	once := Cleanup(in)
	twice := Cleanup(once)
	if once != twice {
		t.Fatalf("Cleanup is not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestCleanupPreservesIndentation(t *testing.T) {
	in := "  ->  Seq Scan on foo\n    ->  Index Scan on bar\n"
	got := Cleanup(in)
	if got != in {
		t.Fatalf("Cleanup altered significant indentation: got %q, want %q", got, in)
	}
}
