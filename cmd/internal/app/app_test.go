package app

import "testing"

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit loopback", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "wildcard v4 maps to loopback", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "wildcard v6 maps to loopback", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "empty host maps to loopback", in: ":8080", want: "http://127.0.0.1:8080"},
		{name: "ipv6 host keeps brackets", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
		{name: "hostname", in: "souq.internal:8080", want: "http://souq.internal:8080"},
		{name: "unparseable passes through", in: "souq.internal", want: "http://souq.internal"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://api.souq.example", want: "wss://api.souq.example"},
		{in: "souq.internal:8080", want: "ws://souq.internal:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
