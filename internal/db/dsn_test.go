package db

import "testing"

func TestIsPostgres(t *testing.T) {
	cases := []struct {
		dsn  string
		want bool
	}{
		{"postgres://user:pw@localhost:5432/gym", true},
		{"postgresql://user:pw@localhost/gym", true},
		{"host=localhost user=gym password=pw dbname=gym", true},
		{"gym.db", false},
		{"file:gym?mode=memory&cache=shared", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsPostgres(tc.dsn); got != tc.want {
			t.Errorf("IsPostgres(%q) = %v, want %v", tc.dsn, got, tc.want)
		}
	}
}

func TestNormalizeDSN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`"gym.db"`, "gym.db"},
		{"  postgres://u:p@db/gym  ", "postgres://u:p@db/gym"},
		{"host=db user=gym  dbname=gym", "host=db user=gym dbname=gym sslmode=disable"},
		{"host=db user=gym dbname=gym sslmode=require", "host=db user=gym dbname=gym sslmode=require"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeDSN(tc.in); got != tc.want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
