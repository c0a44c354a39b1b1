package main

import "testing"

func TestDefaultKeepSourceRetainsUnlessDisabled(t *testing.T) {
	cases := []struct {
		keepTemp string
		want     bool
	}{
		{"", true},
		{"1", true},
		{"yes", true},
		{"0", false},
	}
	for _, tc := range cases {
		t.Setenv("KEEP_TEMP", tc.keepTemp)
		if got := defaultKeepSource(); got != tc.want {
			t.Errorf("KEEP_TEMP=%q: defaultKeepSource = %v, expected %v", tc.keepTemp, got, tc.want)
		}
	}
}

func TestKeepSourceFlagRegistered(t *testing.T) {
	flag := rootCmd.Flags().Lookup("keep-source")
	if flag == nil {
		t.Fatal("keep-source flag not registered")
	}
}
